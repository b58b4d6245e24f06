package maintenance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tables whose rows carry an image_url column
const (
	TableRestaurants = "restaurants"
	TableProducts    = "products"
)

// RawOpeningHours is the stored opening_hours text of a restaurant
type RawOpeningHours struct {
	RestaurantID uuid.UUID
	Name         string
	Raw          string
}

// ImageRef points at one image_url cell
type ImageRef struct {
	Table string
	ID    uuid.UUID
	URL   string
}

// RestaurantKey holds the columns used to detect duplicate restaurants
type RestaurantKey struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
}

// MergeResult counts the rows repointed by a restaurant merge
type MergeResult struct {
	Products int64
	Orders   int64
}

// Store gives maintenance jobs column-level access that the aggregate
// repositories do not expose.
type Store interface {
	ListOpeningHours(ctx context.Context) ([]RawOpeningHours, error)
	UpdateOpeningHours(ctx context.Context, restaurantID uuid.UUID, value string) error

	// ListImageURLs returns every non-empty image_url of restaurants and products
	ListImageURLs(ctx context.Context) ([]ImageRef, error)
	UpdateImageURL(ctx context.Context, ref ImageRef, url string) error

	// ListRestaurantKeys returns all restaurants, oldest first
	ListRestaurantKeys(ctx context.Context) ([]RestaurantKey, error)

	// MergeRestaurants repoints products and orders of dropID to keepID and
	// deletes dropID, in one transaction
	MergeRestaurants(ctx context.Context, keepID, dropID uuid.UUID) (MergeResult, error)
}
