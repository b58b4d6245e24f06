package shared

import "strings"

// Listing limits applied by Filter.Normalize
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter carries listing parameters from the application layer to the
// repositories. Filters keys are interpreted per repository; unknown keys
// are ignored.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]any
}

// Where returns a first-page filter matching key = value
func Where(key string, value any) Filter {
	return Filter{Filters: map[string]any{key: value}}.Normalize()
}

// Normalize fills paging defaults, clamps the page size to MaxPageSize and
// lowercases the direction to "asc" or "desc" (the default).
func (f Filter) Normalize() Filter {
	f.Page = max(f.Page, 1)
	switch {
	case f.PageSize < 1:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	if f.OrderBy == "" {
		f.OrderBy = "created_at"
	}
	if strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc") {
		f.OrderDir = "asc"
	} else {
		f.OrderDir = "desc"
	}
	if f.Filters == nil {
		f.Filters = map[string]any{}
	}
	return f
}

// Offset is the number of rows before the current page
func (f Filter) Offset() int { return (f.Page - 1) * f.PageSize }
