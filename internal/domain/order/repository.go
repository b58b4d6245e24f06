package order

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindAll lists orders. Supported filter keys: "status" (Status),
	// "restaurant_id", "driver_id" (uuid.UUID), "customer_phone", "payment_id" (string),
	// "from", "to" (time.Time on created_at).
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates an order and its items
	Save(ctx context.Context, o *Order) error

	// SaveWithLock updates an order only if its version is unchanged
	SaveWithLock(ctx context.Context, o *Order) error

	// AssignDriver claims an unassigned order for a driver in a single
	// conditional update. A pending order becomes accepted. Returns false
	// when the order already has a driver or is not assignable.
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// ReassignRestaurant moves every order of one restaurant to another
	ReassignRestaurant(ctx context.Context, fromID, toID uuid.UUID) (int64, error)

	// CountActiveByDriver counts assigned orders that are not delivered or rejected
	CountActiveByDriver(ctx context.Context, driverID uuid.UUID) (int64, error)
}

// IdempotencyKeyRepository stores checkout idempotency keys
type IdempotencyKeyRepository interface {
	// Find returns the key or shared.ErrNotFound
	Find(ctx context.Context, key string) (*IdempotencyKey, error)

	// Save stores a new key. A concurrent insert of the same key yields
	// shared.ErrAlreadyExists.
	Save(ctx context.Context, k *IdempotencyKey) error

	// DeleteExpired purges keys that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
