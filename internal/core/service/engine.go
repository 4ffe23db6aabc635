package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/logger"
	"github.com/rl1809/comic-store/internal/metrics"
	"github.com/rl1809/comic-store/internal/port"
)

type Options struct {
	Validator port.Validator
	Store     port.PersistenceGateway
	// Cache and Database are optional mirrors. Their failures are logged, never returned.
	Cache    port.CacheRepository
	Database port.DatabaseRepository
	Metrics  *metrics.StoreMetrics
	Logger   *logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// ExclusiveReservations refuses a reservation of an item code that is already reserved.
	ExclusiveReservations bool
}

// Engine is the single writer over the catalog, the user directory and the ranking.
// Every mutation runs under one lock and is either fully applied or not at all.
type Engine struct {
	mu sync.Mutex

	catalog   *Catalog
	users     *UserDirectory
	ranking   *RankingIndex
	validator port.Validator

	store    port.PersistenceGateway
	cache    port.CacheRepository
	database port.DatabaseRepository
	metrics  *metrics.StoreMetrics
	log      *logger.Logger
	now      func() time.Time

	exclusiveReservations bool
}

type LoadSummary struct {
	Items        int
	Users        int
	Reservations int
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		catalog:               NewCatalog(opts.Validator),
		users:                 NewUserDirectory(opts.Validator),
		ranking:               NewRankingIndex(),
		validator:             opts.Validator,
		store:                 opts.Store,
		cache:                 opts.Cache,
		database:              opts.Database,
		metrics:               opts.Metrics,
		log:                   opts.Logger,
		now:                   opts.Now,
		exclusiveReservations: opts.ExclusiveReservations,
	}
}

func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

func (e *Engine) Users() *UserDirectory {
	return e.users
}

func (e *Engine) Ranking() *RankingIndex {
	return e.ranking
}

// Today is the calendar day availability is judged against.
func (e *Engine) Today() time.Time {
	return domain.DateOf(e.now())
}

// Load fills the catalog, then the users, then the reservation histories from the store.
// Read failures are logged and leave the affected collection empty.
func (e *Engine) Load(ctx context.Context) LoadSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var summary LoadSummary
	if e.store == nil {
		return summary
	}
	ctx = e.log.WithField(ctx, "operation", "load")

	items, err := e.store.LoadCatalog(ctx)
	if err != nil {
		e.log.Error(ctx, "failed to load catalog, starting empty", err)
	}
	e.catalog.restore(items)
	summary.Items = len(items)

	users, err := e.store.LoadUsers(ctx)
	if err != nil {
		e.log.Error(ctx, "failed to load users, starting empty", err)
	}
	e.users.restore(users)
	for _, u := range e.users.List() {
		e.ranking.Upsert(u.Rut, u.Name, u.TotalPurchased())
	}
	summary.Users = len(users)

	records, err := e.store.LoadReservations(ctx)
	if err != nil {
		e.log.Error(ctx, "failed to load reservations, starting empty", err)
	}
	for _, rec := range records {
		e.catalog.markReserved(rec.ItemCode)
		item, itemOK := e.catalog.FindByCode(rec.ItemCode)
		if _, userOK := e.users.FindByRut(rec.Rut); userOK && itemOK {
			e.users.recordReservation(rec.Rut, item, rec.Quantity)
		}
	}
	summary.Reservations = len(records)

	for _, item := range e.catalog.Snapshot() {
		e.mirrorItem(ctx, item)
	}
	e.metrics.SetCatalogItems(e.catalog.Len())
	e.metrics.SetUsers(e.users.Len())

	ctx = e.log.WithFields(ctx, map[string]any{
		"items":        summary.Items,
		"users":        summary.Users,
		"reservations": summary.Reservations,
	})
	e.log.Info(ctx, "store loaded")
	return summary
}

func (e *Engine) AddItem(ctx context.Context, in NewItem) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.operationContext(ctx, metrics.OpAddItem)
	code, err := e.catalog.AddItem(in)
	if err != nil {
		return "", e.fail(ctx, metrics.OpAddItem, err)
	}
	ctx = e.log.WithItemCode(ctx, code)

	item, _ := e.catalog.FindByCode(code)
	e.mirrorItem(ctx, item)
	e.metrics.SetCatalogItems(e.catalog.Len())
	e.succeed(ctx, metrics.OpAddItem)
	return code, nil
}

// RemoveItem reports false for an unknown code and changes nothing.
func (e *Engine) RemoveItem(ctx context.Context, code string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.log.WithItemCode(e.operationContext(ctx, metrics.OpRemoveItem), code)
	if !e.catalog.RemoveItem(code) {
		e.metrics.IncOperation(metrics.OpRemoveItem, resultLabel(domain.ErrItemNotFound))
		return false
	}

	if e.cache != nil {
		if err := e.cache.DeleteStock(ctx, code); err != nil {
			e.log.Error(ctx, "failed to drop mirrored stock", err)
		}
	}
	if e.database != nil {
		if err := e.database.DeleteItem(ctx, code); err != nil {
			e.log.Error(ctx, "failed to delete audit item", err)
		}
	}
	e.metrics.SetCatalogItems(e.catalog.Len())
	e.succeed(ctx, metrics.OpRemoveItem)
	return true
}

func (e *Engine) Register(ctx context.Context, rut, name, email, phone string) (domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.log.WithRut(e.operationContext(ctx, metrics.OpRegister), rut)
	user, err := e.users.Register(rut, name, email, phone)
	if err != nil {
		return domain.User{}, e.fail(ctx, metrics.OpRegister, err)
	}
	e.ranking.Upsert(user.Rut, user.Name, 0)

	if e.store != nil {
		if err := e.store.AppendUser(ctx, user); err != nil {
			e.log.Error(ctx, "failed to append user", err)
		}
	}
	if e.database != nil {
		if err := e.database.SaveUser(ctx, user); err != nil {
			e.log.Error(ctx, "failed to save audit user", err)
		}
	}
	if e.cache != nil {
		if err := e.cache.SetPurchaseTotal(ctx, user.Rut, 0); err != nil {
			e.log.Error(ctx, "failed to mirror ranking", err)
		}
	}
	e.metrics.SetUsers(e.users.Len())
	e.succeed(ctx, metrics.OpRegister)
	return user, nil
}

func (e *Engine) Purchase(ctx context.Context, rut, itemCode string, quantity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.log.WithItemCode(e.log.WithRut(e.operationContext(ctx, metrics.OpPurchase), rut), itemCode)

	user, item, err := e.resolve(rut, itemCode)
	if err != nil {
		return e.fail(ctx, metrics.OpPurchase, err)
	}
	if err := e.validator.NonNegative("quantity", quantity); err != nil {
		return e.fail(ctx, metrics.OpPurchase, err)
	}
	if !item.Purchasable(e.now()) {
		return e.fail(ctx, metrics.OpPurchase,
			fmt.Errorf("%w: %s arrives on %s", domain.ErrNotYetAvailable, item.Code, item.AvailableFrom.Format(domain.DateLayout)))
	}
	if quantity > item.Stock {
		return e.fail(ctx, metrics.OpPurchase,
			fmt.Errorf("%w: requested %d, %d left", domain.ErrInsufficientStock, quantity, item.Stock))
	}

	item, err = e.catalog.adjustStock(item.Code, -quantity)
	if err != nil {
		return e.fail(ctx, metrics.OpPurchase, err)
	}
	total := e.users.recordPurchase(user.Rut, item, quantity)
	e.ranking.Upsert(user.Rut, user.Name, total)

	e.mirrorStock(ctx, item, quantity)
	if e.cache != nil {
		if err := e.cache.SetPurchaseTotal(ctx, user.Rut, total); err != nil {
			e.log.Error(ctx, "failed to mirror ranking", err)
		}
	}
	if e.database != nil {
		if err := e.database.CreatePurchase(ctx, user.Rut, item, quantity); err != nil {
			e.log.Error(ctx, "failed to record audit purchase", err)
		}
	}
	e.metrics.AddUnitsSold(quantity)
	e.succeed(ctx, metrics.OpPurchase)
	return nil
}

// Reserve holds stock of a pre-sale item for a user. Reservations draw from the
// same stock as purchases.
func (e *Engine) Reserve(ctx context.Context, rut, itemCode string, quantity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.log.WithItemCode(e.log.WithRut(e.operationContext(ctx, metrics.OpReserve), rut), itemCode)

	user, item, err := e.resolve(rut, itemCode)
	if err != nil {
		return e.fail(ctx, metrics.OpReserve, err)
	}
	if err := e.validator.NonNegative("quantity", quantity); err != nil {
		return e.fail(ctx, metrics.OpReserve, err)
	}
	if !item.Preorderable(e.now()) {
		return e.fail(ctx, metrics.OpReserve, fmt.Errorf("%w: %s", domain.ErrNotPreorderable, item.Code))
	}
	if e.exclusiveReservations && e.catalog.IsReserved(item.Code) {
		return e.fail(ctx, metrics.OpReserve, fmt.Errorf("%w: %s", domain.ErrItemAlreadyReserved, item.Code))
	}
	if quantity > item.Stock {
		return e.fail(ctx, metrics.OpReserve,
			fmt.Errorf("%w: requested %d, %d left", domain.ErrInsufficientStock, quantity, item.Stock))
	}

	item, err = e.catalog.adjustStock(item.Code, -quantity)
	if err != nil {
		return e.fail(ctx, metrics.OpReserve, err)
	}
	e.catalog.markReserved(item.Code)
	e.users.recordReservation(user.Rut, item, quantity)

	record := domain.ReservationRecord{Rut: user.Rut, ItemCode: item.Code, Quantity: quantity}
	if e.store != nil {
		if err := e.store.AppendReservation(ctx, record); err != nil {
			e.log.Error(ctx, "failed to append reservation", err)
		}
	}
	e.mirrorStock(ctx, item, quantity)
	if e.cache != nil {
		if err := e.cache.PushReservation(ctx, record.Rut, record.ItemCode, record.Quantity); err != nil {
			e.log.Error(ctx, "failed to mirror reservation", err)
		}
	}
	if e.database != nil {
		if err := e.database.CreateReservation(ctx, user.Rut, item, quantity); err != nil {
			e.log.Error(ctx, "failed to record audit reservation", err)
		}
	}
	e.metrics.AddUnitsReserved(quantity)
	e.succeed(ctx, metrics.OpReserve)
	return nil
}

// Finalize writes the catalog to a new snapshot and returns where it went.
func (e *Engine) Finalize(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = e.operationContext(ctx, metrics.OpSnapshot)
	if e.store == nil {
		return "", nil
	}
	path, err := e.store.SnapshotCatalog(ctx, e.catalog.Snapshot())
	if err != nil {
		e.log.Error(ctx, "failed to snapshot catalog", err)
		e.metrics.IncOperation(metrics.OpSnapshot, "io_error")
		return path, fmt.Errorf("snapshot catalog: %w", err)
	}
	e.succeed(e.log.WithField(ctx, "path", path), metrics.OpSnapshot)
	return path, nil
}

func (e *Engine) resolve(rut, itemCode string) (domain.User, domain.Item, error) {
	user, ok := e.users.FindByRut(rut)
	if !ok {
		return domain.User{}, domain.Item{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, rut)
	}
	item, ok := e.catalog.FindByCode(itemCode)
	if !ok {
		return domain.User{}, domain.Item{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemCode)
	}
	return user, item, nil
}

// mirrorStock replays a deduction on the cache, resetting the mirrored value when
// the cache has drifted from the catalog.
func (e *Engine) mirrorStock(ctx context.Context, item domain.Item, deducted int) {
	if e.cache != nil {
		ok, err := e.cache.DecrementStock(ctx, item.Code, deducted)
		if err != nil {
			e.log.Error(ctx, "failed to mirror stock", err)
		} else if !ok {
			if err := e.cache.SetStock(ctx, item.Code, item.Stock); err != nil {
				e.log.Error(ctx, "failed to resync mirrored stock", err)
			}
		}
	}
}

func (e *Engine) mirrorItem(ctx context.Context, item domain.Item) {
	if e.cache != nil {
		if err := e.cache.SetStock(ctx, item.Code, item.Stock); err != nil {
			e.log.Error(ctx, "failed to mirror stock", err)
		}
	}
	if e.database != nil {
		if err := e.database.SaveItem(ctx, item); err != nil {
			e.log.Error(ctx, "failed to save audit item", err)
		}
	}
}

func (e *Engine) operationContext(ctx context.Context, op string) context.Context {
	return e.log.WithFields(ctx, map[string]any{
		"operation":    op,
		"operation_id": uuid.NewString(),
	})
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	e.metrics.IncOperation(op, resultLabel(err))
	ctx = e.log.WithField(ctx, "reason", err.Error())
	e.log.Info(ctx, "operation rejected")
	return err
}

func (e *Engine) succeed(ctx context.Context, op string) {
	e.metrics.IncOperation(op, metrics.ResultOK)
	e.log.Info(ctx, "operation applied")
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrRutInvalid):
		return "rut_invalid"
	case errors.Is(err, domain.ErrEmailAlreadyRegistered):
		return "email_taken"
	case errors.Is(err, domain.ErrRutAlreadyRegistered):
		return "rut_taken"
	case errors.Is(err, domain.ErrItemAlreadyReserved):
		return "already_reserved"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, domain.ErrNotYetAvailable):
		return "not_yet_available"
	case errors.Is(err, domain.ErrNotPreorderable):
		return "not_preorderable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	}
	return "error"
}
