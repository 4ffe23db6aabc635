package port

import (
	"context"

	"github.com/rl1809/comic-store/internal/core/domain"
)

// DatabaseRepository keeps an audit copy of catalog and transaction activity.
type DatabaseRepository interface {
	// SaveItem inserts or updates an item row
	SaveItem(ctx context.Context, item domain.Item) error

	// DeleteItem removes an item row
	DeleteItem(ctx context.Context, itemCode string) error

	// SaveUser inserts a registered user
	SaveUser(ctx context.Context, user domain.User) error

	// CreatePurchase records a purchase and the stock left after it
	CreatePurchase(ctx context.Context, rut string, item domain.Item, quantity int) error

	// CreateReservation records a reservation and the stock left after it
	CreateReservation(ctx context.Context, rut string, item domain.Item, quantity int) error
}
