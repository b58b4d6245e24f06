package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
)

// ErrGeocodingDisabled is returned when no geocoder is configured
var ErrGeocodingDisabled = shared.NewDomainError("GEOCODING_UNAVAILABLE", "Address lookup is not available")

// SearchResult is a resolved address
type SearchResult struct {
	Query     string  `json:"query"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReverseResult is the address found at a point
type ReverseResult struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// Service backs the checkout address form
type Service struct {
	geocoder shared.Geocoder
}

// NewService creates a geocode service. geocoder may be nil.
func NewService(geocoder shared.Geocoder) *Service {
	return &Service{geocoder: geocoder}
}

// Search resolves a free-text address
func (s *Service) Search(ctx context.Context, query string) (*SearchResult, error) {
	if s.geocoder == nil {
		return nil, ErrGeocodingDisabled
	}
	query = strings.TrimSpace(query)
	if len(query) < 3 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "q must have at least 3 characters")
	}
	point, err := s.geocoder.Geocode(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	return &SearchResult{Query: query, Latitude: point.Latitude, Longitude: point.Longitude}, nil
}

// Reverse finds the address at a point
func (s *Service) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if s.geocoder == nil {
		return nil, ErrGeocodingDisabled
	}
	point, err := valueobject.NewGeoPoint(lat, lon)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_COORDINATES", err.Error())
	}
	name, err := s.geocoder.Reverse(ctx, point)
	if err != nil {
		return nil, mapError(err)
	}
	return &ReverseResult{Latitude: lat, Longitude: lon, DisplayName: name}, nil
}

func mapError(err error) error {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.NewDomainError("GEOCODING_UNAVAILABLE", "Address lookup failed, try again later")
}
