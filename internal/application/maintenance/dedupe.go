package maintenance

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DedupeRestaurants merges restaurants sharing a phone number, or a name and
// address that only differ by case, accents or spacing. The oldest row of a
// group survives and inherits the products and orders of the others.
func (s *Service) DedupeRestaurants(ctx context.Context, dryRun bool) (*Report, error) {
	report := newReport(JobDedupeRestaurants)
	rows, err := s.store.ListRestaurantKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("list restaurants: %w", err)
	}

	keepers := make(map[string]uuid.UUID)
	for _, row := range rows {
		report.Processed++
		keys := duplicateKeys(row)
		keep, found := uuid.Nil, false
		for _, k := range keys {
			if id, ok := keepers[k]; ok {
				keep, found = id, true
				break
			}
		}
		if !found {
			for _, k := range keys {
				keepers[k] = row.ID
			}
			report.Skipped++
			continue
		}
		for _, k := range keys {
			if _, ok := keepers[k]; !ok {
				keepers[k] = keep
			}
		}

		if dryRun {
			s.logger.Info("would merge restaurant",
				zap.String("keep", keep.String()),
				zap.String("drop", row.ID.String()),
				zap.String("name", row.Name))
			report.Updated++
			continue
		}
		res, err := s.store.MergeRestaurants(ctx, keep, row.ID)
		if err != nil {
			report.fail("merge %s into %s: %v", row.ID, keep, err)
			continue
		}
		s.logger.Info("merged restaurant",
			zap.String("keep", keep.String()),
			zap.String("drop", row.ID.String()),
			zap.Int64("products", res.Products),
			zap.Int64("orders", res.Orders))
		report.Updated++
	}
	return report, nil
}

func duplicateKeys(row RestaurantKey) []string {
	var keys []string
	if p, err := valueobject.NewPhone(row.Phone); err == nil {
		keys = append(keys, "phone:"+p.Local())
	}
	name, address := foldText(row.Name), foldText(row.Address)
	if name != "" && address != "" {
		keys = append(keys, "place:"+name+"|"+address)
	}
	return keys
}

// foldText lowercases, strips accents and collapses whitespace
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
