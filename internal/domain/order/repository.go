package order

import "context"

// Repository persists Order aggregates.
//
// Save inserts orders with a zero ID (assigning ID and line IDs) and updates
// existing ones only when the stored version equals o.Version, returning
// ErrConflict otherwise. Lines missing from o are deleted. On success o
// carries the stored ids and its new Version. FindByID and
// FindByAccountID apply the visibility filter: cancelled or soft-deleted
// orders are reported as ErrNotFound / omitted. Delete purges the order and
// its lines.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByAccountID(ctx context.Context, accountID int64) ([]*Order, error)
	Delete(ctx context.Context, o *Order) error
}
