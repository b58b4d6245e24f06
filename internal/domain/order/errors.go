package order

import "github.com/delivery/backend/internal/domain/shared"

var (
	// ErrAlreadyAssigned is returned when another driver already claimed the order
	ErrAlreadyAssigned = shared.NewDomainError("ORDER_ALREADY_ASSIGNED", "Order was already taken by another driver")

	// ErrIdempotencyKeyReused is returned when a key is replayed with a different payload
	ErrIdempotencyKeyReused = shared.NewDomainError("IDEMPOTENCY_KEY_REUSED", "Idempotency key was already used for a different request")

	// ErrRestaurantClosed is returned when ordering outside opening hours
	ErrRestaurantClosed = shared.NewDomainError("RESTAURANT_CLOSED", "Restaurant is currently closed")
)
