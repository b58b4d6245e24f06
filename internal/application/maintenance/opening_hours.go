package maintenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/delivery/backend/internal/domain/restaurant"
)

// MigrateOpeningHours rewrites legacy "HH:MM-HH:MM|Day" values as JSON.
// Rows already in JSON are skipped; unparseable rows are reported and kept.
func (s *Service) MigrateOpeningHours(ctx context.Context, dryRun bool) (*Report, error) {
	report := newReport(JobMigrateOpeningHours)
	rows, err := s.store.ListOpeningHours(ctx)
	if err != nil {
		return report, fmt.Errorf("list opening hours: %w", err)
	}
	for _, row := range rows {
		report.Processed++
		raw := strings.TrimSpace(row.Raw)
		if raw == "" {
			report.Skipped++
			continue
		}
		oh, err := restaurant.ParseOpeningHours(raw)
		if err != nil {
			report.fail("%s (%s): %q", row.Name, row.RestaurantID, row.Raw)
			continue
		}
		if strings.HasPrefix(raw, "{") && raw == oh.String() {
			report.Skipped++
			continue
		}
		if !dryRun {
			if err := s.store.UpdateOpeningHours(ctx, row.RestaurantID, oh.String()); err != nil {
				report.fail("%s (%s): %v", row.Name, row.RestaurantID, err)
				continue
			}
		}
		report.Updated++
	}
	return report, nil
}
