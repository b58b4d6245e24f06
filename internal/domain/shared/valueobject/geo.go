package valueobject

import (
	"errors"
	"math"
)

// ErrInvalidCoordinates is returned for out-of-range latitude/longitude
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewGeoPoint validates the coordinate ranges
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return GeoPoint{}, ErrInvalidCoordinates
	}
	return GeoPoint{Latitude: lat, Longitude: lon}, nil
}

// GeoPointFromPtrs builds a point when both coordinates are present.
// It returns nil when either is missing.
func GeoPointFromPtrs(lat, lon *float64) (*GeoPoint, error) {
	if lat == nil || lon == nil {
		return nil, nil
	}
	p, err := NewGeoPoint(*lat, *lon)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DistanceKm returns the haversine distance between two points in kilometres
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(other.Latitude - p.Latitude)
	dLon := toRad(other.Longitude - p.Longitude)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(p.Latitude))*math.Cos(toRad(other.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
