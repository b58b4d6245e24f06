package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/delivery/backend/internal/domain/shared"
	"golang.org/x/time/rate"
)

// ErrGeocoderDisabled is returned by backfill-coordinates without a geocoder
var ErrGeocoderDisabled = errors.New("maintenance: geocoding is not configured")

const defaultBackfillLimit = 500

// BackfillCoordinates geocodes restaurants that have no location, one
// request per GeocodeInterval
func (s *Service) BackfillCoordinates(ctx context.Context, limit int) (*Report, error) {
	report := newReport(JobBackfillCoordinates)
	if s.geocoder == nil {
		return report, ErrGeocoderDisabled
	}
	if limit <= 0 {
		limit = defaultBackfillLimit
	}
	rows, err := s.restaurants.FindWithoutLocation(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("find restaurants without location: %w", err)
	}

	limiter := rate.NewLimiter(rate.Every(s.config.GeocodeInterval), 1)
	for i := range rows {
		r := &rows[i]
		report.Processed++
		if r.Address == "" {
			report.Skipped++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}
		point, err := s.geocoder.Geocode(ctx, r.Address)
		switch {
		case errors.Is(err, shared.ErrAddressNotFound):
			report.Skipped++
			continue
		case err != nil:
			report.fail("%s (%s): %v", r.Name, r.ID, err)
			continue
		}
		r.SetLocation(&point)
		if err := s.restaurants.Save(ctx, r); err != nil {
			report.fail("%s (%s): %v", r.Name, r.ID, err)
			continue
		}
		report.Updated++
	}
	return report, nil
}
