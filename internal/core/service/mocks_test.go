package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/core/validation"
)

var errDiskFull = errors.New("disk full")

// Mock PersistenceGateway
type mockStore struct {
	mu           sync.Mutex
	items        []domain.Item
	users        []domain.User
	reservations []domain.ReservationRecord
	snapshots    [][]domain.Item
	failAppends  bool
}

func (m *mockStore) LoadCatalog(ctx context.Context) ([]domain.Item, error) {
	return m.items, nil
}

func (m *mockStore) SnapshotCatalog(ctx context.Context, items []domain.Item) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, items)
	return "snapshot", nil
}

func (m *mockStore) LoadUsers(ctx context.Context) ([]domain.User, error) {
	return m.users, nil
}

func (m *mockStore) AppendUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppends {
		return errDiskFull
	}
	m.users = append(m.users, user)
	return nil
}

func (m *mockStore) LoadReservations(ctx context.Context) ([]domain.ReservationRecord, error) {
	return m.reservations, nil
}

func (m *mockStore) AppendReservation(ctx context.Context, record domain.ReservationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppends {
		return errDiskFull
	}
	m.reservations = append(m.reservations, record)
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu           sync.Mutex
	stock        map[string]int
	totals       map[string]int
	reservations []string
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{stock: make(map[string]int), totals: make(map[string]int)}
}

func (m *mockCacheRepo) SetStock(ctx context.Context, itemCode string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[itemCode] = quantity
	return nil
}

func (m *mockCacheRepo) DecrementStock(ctx context.Context, itemCode string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[itemCode]
	if ok && current >= quantity {
		m.stock[itemCode] = current - quantity
		return true, nil
	}
	return false, nil
}

func (m *mockCacheRepo) DeleteStock(ctx context.Context, itemCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stock, itemCode)
	return nil
}

func (m *mockCacheRepo) SetPurchaseTotal(ctx context.Context, rut string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[rut] = total
	return nil
}

func (m *mockCacheRepo) PushReservation(ctx context.Context, rut, itemCode string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = append(m.reservations, rut+"|"+itemCode)
	return nil
}

// Mock DatabaseRepository that always fails
type failingDatabase struct{}

func (failingDatabase) SaveItem(ctx context.Context, item domain.Item) error { return errDiskFull }

func (failingDatabase) DeleteItem(ctx context.Context, itemCode string) error { return errDiskFull }

func (failingDatabase) SaveUser(ctx context.Context, user domain.User) error { return errDiskFull }

func (failingDatabase) CreatePurchase(ctx context.Context, rut string, item domain.Item, quantity int) error {
	return errDiskFull
}

func (failingDatabase) CreateReservation(ctx context.Context, rut string, item domain.Item, quantity int) error {
	return errDiskFull
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func dayOffset(days int) *time.Time {
	d := domain.DateOf(fixedNow).AddDate(0, 0, days)
	return &d
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Validator == nil {
		opts.Validator = validation.New()
	}
	if opts.Now == nil {
		opts.Now = clock
	}
	return NewEngine(opts)
}

func mustAddItem(t *testing.T, e *Engine, name string, stock int, availableFrom *time.Time) string {
	t.Helper()
	code, err := e.AddItem(context.Background(), NewItem{
		Category:      domain.CategoryManga,
		Name:          name,
		Producer:      "Kodansha",
		Quantity:      stock,
		AvailableFrom: availableFrom,
		Price:         decimal.RequireFromString("9990"),
	})
	require.NoError(t, err)
	return code
}

func mustRegister(t *testing.T, e *Engine, rut, email string) {
	t.Helper()
	_, err := e.Register(context.Background(), rut, "test user", email, "12345678")
	require.NoError(t, err)
}
