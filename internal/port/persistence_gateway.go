package port

import (
	"context"

	"github.com/rl1809/comic-store/internal/core/domain"
)

type CatalogStore interface {
	// LoadCatalog returns every item in the catalog source; a missing source yields no items
	LoadCatalog(ctx context.Context) ([]domain.Item, error)

	// SnapshotCatalog writes the whole catalog to a new snapshot and returns its location
	SnapshotCatalog(ctx context.Context, items []domain.Item) (string, error)
}

type UserStore interface {
	// LoadUsers returns every registered user without histories
	LoadUsers(ctx context.Context) ([]domain.User, error)

	// AppendUser adds a newly registered user
	AppendUser(ctx context.Context, user domain.User) error
}

type ReservationLog interface {
	// LoadReservations returns the reservation log in append order
	LoadReservations(ctx context.Context) ([]domain.ReservationRecord, error)

	// AppendReservation adds one reservation entry
	AppendReservation(ctx context.Context, record domain.ReservationRecord) error
}

// PersistenceGateway is the load/append surface the core persists through.
type PersistenceGateway interface {
	CatalogStore
	UserStore
	ReservationLog
}
