package port

import "context"

// CacheRepository mirrors stock levels and purchase totals for readers outside the process.
type CacheRepository interface {
	// SetStock overwrites the mirrored stock of an item
	SetStock(ctx context.Context, itemCode string, quantity int) error

	// DecrementStock atomically decreases mirrored stock, returns false if insufficient
	DecrementStock(ctx context.Context, itemCode string, quantity int) (bool, error)

	// DeleteStock drops the mirrored stock of a removed item
	DeleteStock(ctx context.Context, itemCode string) error

	// SetPurchaseTotal records a user's cumulative purchased quantity in the ranking mirror
	SetPurchaseTotal(ctx context.Context, rut string, total int) error

	// PushReservation appends a reservation to the mirrored reservation log
	PushReservation(ctx context.Context, rut, itemCode string, quantity int) error
}
