package catalog

import (
	"context"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product with its prices
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products with their prices
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindAll lists products. Supported filter keys: "restaurant_id"
	// (uuid.UUID), "category", "product_type" (string), "available" (bool).
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, error)

	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates a product and replaces its prices
	Save(ctx context.Context, product *Product) error

	Delete(ctx context.Context, id uuid.UUID) error

	// ReassignRestaurant moves every product of one restaurant to another
	ReassignRestaurant(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
}
