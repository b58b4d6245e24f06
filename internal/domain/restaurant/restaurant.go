package restaurant

import (
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Restaurant is the aggregate root for a merchant that sells products
// through the marketplace.
type Restaurant struct {
	shared.BaseAggregateRoot
	Name         string
	Phone        string
	Address      string
	Categories   []string
	IsOpen       bool
	OpeningHours OpeningHours
	DeliveryTime string
	MinOrder     decimal.Decimal
	Rating       decimal.Decimal
	Location     *valueobject.GeoPoint
	ImageURL     string

	stored storedHours
}

// storedHours is the opening_hours column as loaded. Saving writes the text
// back verbatim while OpeningHours still holds what was parsed from it.
type storedHours struct {
	text   string
	parsed OpeningHours
	loaded bool
}

// NewRestaurant creates a new restaurant. The phone is normalized.
func NewRestaurant(name, phone, address string) (*Restaurant, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PHONE", "Restaurant phone must have 8 digits")
	}
	if strings.TrimSpace(address) == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Restaurant address cannot be empty")
	}

	r := &Restaurant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		Phone:             p.Local(),
		Address:           strings.TrimSpace(address),
		Categories:        []string{},
		IsOpen:            true,
		MinOrder:          decimal.Zero,
		Rating:            decimal.Zero,
	}
	r.AddDomainEvent(NewRestaurantCreatedEvent(r))
	return r, nil
}

// Update replaces the editable descriptive fields
func (r *Restaurant) Update(name, phone, address, deliveryTime string) error {
	if err := validateName(name); err != nil {
		return err
	}
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return shared.NewDomainError("INVALID_PHONE", "Restaurant phone must have 8 digits")
	}
	if strings.TrimSpace(address) == "" {
		return shared.NewDomainError("INVALID_ADDRESS", "Restaurant address cannot be empty")
	}
	if strings.TrimSpace(address) != r.Address {
		// a new address invalidates previously geocoded coordinates
		r.Location = nil
	}
	r.Name = strings.TrimSpace(name)
	r.Phone = p.Local()
	r.Address = strings.TrimSpace(address)
	r.DeliveryTime = strings.TrimSpace(deliveryTime)
	r.Touch()
	return nil
}

// SetCategories replaces the category list, dropping blanks and duplicates
func (r *Restaurant) SetCategories(categories []string) {
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	r.Categories = out
	r.Touch()
}

// SetMinOrder sets the minimum subtotal accepted at checkout
func (r *Restaurant) SetMinOrder(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError("INVALID_MIN_ORDER", "Minimum order cannot be negative")
	}
	r.MinOrder = amount
	r.Touch()
	return nil
}

// SetRating sets the displayed rating (0 to 5)
func (r *Restaurant) SetRating(rating decimal.Decimal) error {
	if rating.IsNegative() || rating.GreaterThan(decimal.NewFromInt(5)) {
		return shared.NewDomainError("INVALID_RATING", "Rating must be between 0 and 5")
	}
	r.Rating = rating
	r.Touch()
	return nil
}

// SetOpeningHours replaces the opening window. The next save writes the
// canonical JSON encoding.
func (r *Restaurant) SetOpeningHours(h OpeningHours) {
	r.OpeningHours = h
	r.stored = storedHours{}
	r.Touch()
}

// RestoreOpeningHours loads the stored column value. Text in neither
// encoding reads as always open but is kept for StoredOpeningHours.
func (r *Restaurant) RestoreOpeningHours(raw string) {
	h, err := ParseOpeningHours(raw)
	if err != nil {
		h = OpeningHours{}
	}
	r.OpeningHours = h
	r.stored = storedHours{text: raw, parsed: h, loaded: true}
}

// StoredOpeningHours is the column value to persist: the loaded text when
// the hours were not changed since, the canonical encoding otherwise
func (r *Restaurant) StoredOpeningHours() string {
	if r.stored.loaded && r.OpeningHours == r.stored.parsed {
		return r.stored.text
	}
	return r.OpeningHours.String()
}

// SetLocation stores geocoded or admin-provided coordinates
func (r *Restaurant) SetLocation(p *valueobject.GeoPoint) {
	r.Location = p
	r.Touch()
}

// SetImage sets the display image URL
func (r *Restaurant) SetImage(url string) {
	r.ImageURL = strings.TrimSpace(url)
	r.Touch()
}

// ToggleOpen flips the manual open flag and returns the new value
func (r *Restaurant) ToggleOpen() bool {
	r.IsOpen = !r.IsOpen
	r.Touch()
	r.AddDomainEvent(NewRestaurantOpenToggledEvent(r))
	return r.IsOpen
}

// AcceptsOrdersAt reports whether the restaurant can take an order at t:
// the manual flag must be on and t must fall inside the opening window.
func (r *Restaurant) AcceptsOrdersAt(t time.Time) bool {
	return r.IsOpen && r.OpeningHours.IsOpenAt(t)
}

// HasLocation reports whether coordinates are known
func (r *Restaurant) HasLocation() bool {
	return r.Location != nil
}

func validateName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return shared.NewDomainError("INVALID_NAME", "Restaurant name cannot be empty")
	}
	if len([]rune(n)) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Restaurant name cannot exceed 200 characters")
	}
	return nil
}
