package service

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/core/validation"
	"github.com/rl1809/comic-store/internal/port"
)

// UserDirectory owns registered users keyed by RUT, and the set of emails in use.
type UserDirectory struct {
	mu        sync.RWMutex
	validator port.Validator
	users     map[string]*domain.User
	emails    map[string]struct{}
}

func NewUserDirectory(validator port.Validator) *UserDirectory {
	return &UserDirectory{
		validator: validator,
		users:     make(map[string]*domain.User),
		emails:    make(map[string]struct{}),
	}
}

// restore indexes users read from storage without validating them again.
func (d *UserDirectory) restore(users []domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range users {
		stored := u
		d.users[u.Rut] = &stored
		d.emails[u.Email] = struct{}{}
	}
}

// Register validates every field before touching the directory. A taken email
// is reported ahead of a malformed one.
func (d *UserDirectory) Register(rut, name, email, phone string) (domain.User, error) {
	if err := d.validator.Rut(rut); err != nil {
		return domain.User{}, err
	}
	if err := d.validator.NotEmpty("name", name); err != nil {
		return domain.User{}, err
	}
	if err := d.validator.NotEmpty("email", email); err != nil {
		return domain.User{}, err
	}
	if err := d.validator.NotEmpty("phone", phone); err != nil {
		return domain.User{}, err
	}
	for _, f := range []struct{ field, value string }{{"name", name}, {"email", email}, {"phone", phone}} {
		if err := d.validator.SingleLine(f.field, f.value); err != nil {
			return domain.User{}, err
		}
	}
	if err := d.validator.Phone(phone); err != nil {
		return domain.User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.emails[email]; taken {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrEmailAlreadyRegistered, email)
	}
	if err := d.validator.Email(email); err != nil {
		return domain.User{}, err
	}
	if _, taken := d.users[rut]; taken {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrRutAlreadyRegistered, rut)
	}

	user := &domain.User{
		Rut:   rut,
		Name:  validation.FormatName(name),
		Email: email,
		Phone: phone,
	}
	d.users[rut] = user
	d.emails[email] = struct{}{}
	return cloneUser(user), nil
}

func (d *UserDirectory) FindByRut(rut string) (domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[rut]
	if !ok {
		return domain.User{}, false
	}
	return cloneUser(u), true
}

// List returns every user ordered by RUT.
func (d *UserDirectory) List() []domain.User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, cloneUser(u))
	}
	slices.SortFunc(users, func(a, b domain.User) int { return cmp.Compare(a.Rut, b.Rut) })
	return users
}

func (d *UserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.users)
}

// recordPurchase appends to the purchase history and returns the new purchase total.
func (d *UserDirectory) recordPurchase(rut string, item domain.Item, quantity int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[rut]
	if !ok {
		return 0
	}
	u.Purchases = append(u.Purchases, domain.HistoryEntry{Item: item, Quantity: quantity})
	return u.TotalPurchased()
}

func (d *UserDirectory) recordReservation(rut string, item domain.Item, quantity int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[rut]; ok {
		u.Reservations = append(u.Reservations, domain.HistoryEntry{Item: item, Quantity: quantity})
	}
}

func cloneUser(u *domain.User) domain.User {
	c := *u
	c.Purchases = slices.Clone(u.Purchases)
	c.Reservations = slices.Clone(u.Reservations)
	return c
}
