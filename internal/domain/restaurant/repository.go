package restaurant

import (
	"context"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// RestaurantRepository defines persistence for restaurants
type RestaurantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Restaurant, error)

	// FindByPhone finds a restaurant by its normalized phone
	FindByPhone(ctx context.Context, phone string) (*Restaurant, error)

	// FindAll lists restaurants. Supported filter keys: "category" (string),
	// "is_open" (bool). Search matches name and address.
	FindAll(ctx context.Context, filter shared.Filter) ([]Restaurant, error)

	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindWithoutLocation returns restaurants lacking coordinates
	FindWithoutLocation(ctx context.Context, limit int) ([]Restaurant, error)

	// Save creates or updates a restaurant. A duplicate phone yields
	// shared.ErrAlreadyExists.
	Save(ctx context.Context, r *Restaurant) error

	Delete(ctx context.Context, id uuid.UUID) error
}
