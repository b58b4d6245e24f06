package persistence

import (
	"strings"

	"github.com/delivery/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortColumns is the set of columns a listing may be ordered by. Anything
// else sorts by created_at, so user input never reaches ORDER BY unchecked.
type sortColumns map[string]struct{}

func sortable(columns ...string) sortColumns {
	s := sortColumns{"id": {}, "created_at": {}, "updated_at": {}}
	for _, c := range columns {
		s[c] = struct{}{}
	}
	return s
}

func (s sortColumns) column(name string) string {
	if _, ok := s[strings.TrimSpace(name)]; ok {
		return strings.TrimSpace(name)
	}
	return "created_at"
}

var (
	restaurantSort = sortable("name", "rating", "min_order", "is_open")
	productSort    = sortable("name", "category", "product_type", "available")
	orderSort      = sortable("status", "total_price", "customer_name", "assigned_at", "payment_status")
	driverSort     = sortable("name", "status", "last_offered_at")
)

// applyPagination orders by the requested column, breaking ties by id, and
// selects the filter's page
func applyPagination(query *gorm.DB, filter shared.Filter, columns sortColumns) *gorm.DB {
	filter = filter.Normalize()
	return query.
		Order(clause.OrderByColumn{
			Column: clause.Column{Name: columns.column(filter.OrderBy)},
			Desc:   filter.OrderDir == "desc",
		}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}

// searchPattern returns a lowercase substring LIKE pattern. '%' and '\' are
// dropped from the term since SQLite and PostgreSQL disagree on the default escape.
func searchPattern(term string) string {
	term = strings.NewReplacer(`%`, "", `\`, "").Replace(strings.TrimSpace(term))
	return "%" + strings.ToLower(term) + "%"
}
