package service

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/port"
)

type NewItem struct {
	Category      string
	Name          string
	Producer      string
	Quantity      int
	AvailableFrom *time.Time
	Price         decimal.Decimal
}

// Catalog owns the sellable items. Codes are assigned from a counter that only grows.
type Catalog struct {
	mu        sync.RWMutex
	validator port.Validator
	items     map[string]*domain.Item
	// release date -> number of items arriving that day
	releaseDates map[time.Time]int
	reserved     map[string]struct{}
	lastCode     int
}

func NewCatalog(validator port.Validator) *Catalog {
	return &Catalog{
		validator:    validator,
		items:        make(map[string]*domain.Item),
		releaseDates: make(map[time.Time]int),
		reserved:     make(map[string]struct{}),
	}
}

// restore indexes items read from storage as-is and advances the code counter
// past every numeric code. Non-numeric legacy codes are kept but never counted.
func (c *Catalog) restore(items []domain.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range items {
		if old, ok := c.items[item.Code]; ok {
			c.untrackDate(old.AvailableFrom)
		}
		stored := item
		c.items[item.Code] = &stored
		c.trackDate(stored.AvailableFrom)

		if n, err := strconv.Atoi(item.Code); err == nil && n > c.lastCode {
			c.lastCode = n
		}
	}
}

// AddItem validates the item and returns the code assigned to it. Nothing is
// indexed when validation fails.
func (c *Catalog) AddItem(in NewItem) (string, error) {
	if err := c.validator.NotEmpty("category", in.Category); err != nil {
		return "", err
	}
	if err := c.validator.NotEmpty("name", in.Name); err != nil {
		return "", err
	}
	if err := c.validator.NotEmpty("producer", in.Producer); err != nil {
		return "", err
	}
	if err := c.validator.NonNegative("quantity", in.Quantity); err != nil {
		return "", err
	}
	if err := c.validator.NonNegativeAmount("price", in.Price); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastCode++
	item := &domain.Item{
		Code:     fmt.Sprintf("%03d", c.lastCode),
		Category: in.Category,
		Name:     in.Name,
		Producer: in.Producer,
		Stock:    in.Quantity,
		Price:    in.Price,
	}
	if in.AvailableFrom != nil {
		d := domain.DateOf(*in.AvailableFrom)
		item.AvailableFrom = &d
	}
	c.items[item.Code] = item
	c.trackDate(item.AvailableFrom)
	return item.Code, nil
}

// RemoveItem reports false when the code is unknown.
func (c *Catalog) RemoveItem(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[code]
	if !ok {
		return false
	}
	delete(c.items, code)
	delete(c.reserved, code)
	c.untrackDate(item.AvailableFrom)
	return true
}

func (c *Catalog) FindByCode(code string) (domain.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[code]
	if !ok {
		return domain.Item{}, false
	}
	return *item, true
}

// FindByExactName matches whole names, ignoring case.
func (c *Catalog) FindByExactName(name string) []domain.Item {
	return c.filter(func(i *domain.Item) bool { return strings.EqualFold(i.Name, name) })
}

func (c *Catalog) FindByProducer(producer string) []domain.Item {
	return c.filter(func(i *domain.Item) bool { return strings.EqualFold(i.Producer, producer) })
}

func (c *Catalog) FindByCategory(category string) []domain.Item {
	return c.filter(func(i *domain.Item) bool { return strings.EqualFold(i.Category, category) })
}

// List returns every item ordered by name, case-insensitively, then code.
func (c *Catalog) List() []domain.Item {
	return c.filter(func(*domain.Item) bool { return true })
}

// Upcoming returns items arriving strictly after today, earliest first, then by code.
func (c *Catalog) Upcoming(today time.Time) []domain.Item {
	items := c.filter(func(i *domain.Item) bool { return i.ArrivesAfter(today) })
	slices.SortFunc(items, func(a, b domain.Item) int {
		if n := a.AvailableFrom.Compare(*b.AvailableFrom); n != 0 {
			return n
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return items
}

func (c *Catalog) ReleaseDates() []time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dates := make([]time.Time, 0, len(c.releaseDates))
	for d := range c.releaseDates {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	return dates
}

// Snapshot returns every item ordered by code.
func (c *Catalog) Snapshot() []domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	items := make([]domain.Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, *item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return cmp.Compare(a.Code, b.Code) })
	return items
}

func (c *Catalog) IsReserved(code string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.reserved[code]
	return ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// adjustStock applies delta and returns the updated item. Callers check the
// bounds first; a result below zero is refused without change.
func (c *Catalog) adjustStock(code string, delta int) (domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[code]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if item.Stock+delta < 0 {
		return domain.Item{}, domain.ErrInsufficientStock
	}
	item.Stock += delta
	return *item, nil
}

func (c *Catalog) markReserved(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reserved[code] = struct{}{}
}

func (c *Catalog) filter(keep func(*domain.Item) bool) []domain.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var items []domain.Item
	for _, item := range c.items {
		if keep(item) {
			items = append(items, *item)
		}
	}
	slices.SortFunc(items, func(a, b domain.Item) int {
		if n := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); n != 0 {
			return n
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return items
}

func (c *Catalog) trackDate(d *time.Time) {
	if d != nil {
		c.releaseDates[domain.DateOf(*d)]++
	}
}

func (c *Catalog) untrackDate(d *time.Time) {
	if d == nil {
		return
	}
	key := domain.DateOf(*d)
	if c.releaseDates[key] <= 1 {
		delete(c.releaseDates, key)
		return
	}
	c.releaseDates[key]--
}
