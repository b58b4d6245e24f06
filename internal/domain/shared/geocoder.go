package shared

import (
	"context"
	"errors"

	"github.com/delivery/backend/internal/domain/shared/valueobject"
)

// Geocoding errors
var (
	ErrAddressNotFound     = NewDomainError("ADDRESS_NOT_FOUND", "Address could not be located")
	ErrGeocoderUnavailable = errors.New("geocoder: service unavailable")
)

// Geocoder resolves addresses to coordinates and back
type Geocoder interface {
	Geocode(ctx context.Context, address string) (valueobject.GeoPoint, error)
	Reverse(ctx context.Context, point valueobject.GeoPoint) (string, error)
}
