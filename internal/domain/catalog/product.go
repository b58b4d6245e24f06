package catalog

import (
	"strings"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Size is a product size with its own price
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// IsValid checks if the size is known
func (s Size) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// ProductType classifies what is sold
type ProductType string

const (
	ProductTypePizza   ProductType = "pizza"
	ProductTypeDish    ProductType = "dish"
	ProductTypeDrink   ProductType = "drink"
	ProductTypeDessert ProductType = "dessert"
	ProductTypeGrocery ProductType = "grocery"
)

// IsValid checks if the product type is known
func (t ProductType) IsValid() bool {
	switch t {
	case ProductTypePizza, ProductTypeDish, ProductTypeDrink, ProductTypeDessert, ProductTypeGrocery:
		return true
	}
	return false
}

// ErrSizeNotAvailable is returned when a product has no price for a size
var ErrSizeNotAvailable = shared.NewDomainError("SIZE_NOT_AVAILABLE", "Product is not offered in this size")

// ProductPrice is the price of a product in one size
type ProductPrice struct {
	Size  Size
	Price decimal.Decimal
}

// Product is a sellable item (pizza, dish, grocery article) of one restaurant
type Product struct {
	shared.BaseAggregateRoot
	RestaurantID uuid.UUID
	Name         string
	Description  string
	ProductType  ProductType
	Category     string
	ImageURL     string
	Available    bool
	Prices       []ProductPrice
}

// NewProduct creates an available product with at least one size price
func NewProduct(restaurantID uuid.UUID, name string, productType ProductType, prices []ProductPrice) (*Product, error) {
	if restaurantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RESTAURANT", "Restaurant ID cannot be empty")
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if productType == "" {
		productType = ProductTypePizza
	}
	if !productType.IsValid() {
		return nil, shared.DomainErrorf("INVALID_PRODUCT_TYPE", "Unknown product type %q", productType)
	}

	p := &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RestaurantID:      restaurantID,
		Name:              strings.TrimSpace(name),
		ProductType:       productType,
		Available:         true,
	}
	if err := p.SetPrices(prices); err != nil {
		return nil, err
	}
	p.AddDomainEvent(NewProductCreatedEvent(p))
	return p, nil
}

// Update replaces the descriptive fields
func (p *Product) Update(name, description, category string, productType ProductType) error {
	if err := validateProductName(name); err != nil {
		return err
	}
	if productType != "" && !productType.IsValid() {
		return shared.DomainErrorf("INVALID_PRODUCT_TYPE", "Unknown product type %q", productType)
	}
	p.Name = strings.TrimSpace(name)
	p.Description = strings.TrimSpace(description)
	p.Category = strings.TrimSpace(category)
	if productType != "" {
		p.ProductType = productType
	}
	p.Touch()
	return nil
}

// SetPrices replaces all size prices. Sizes must be unique and prices positive.
func (p *Product) SetPrices(prices []ProductPrice) error {
	if len(prices) == 0 {
		return shared.NewDomainError("NO_PRICES", "Product needs at least one size price")
	}
	seen := make(map[Size]struct{}, len(prices))
	out := make([]ProductPrice, 0, len(prices))
	for _, pr := range prices {
		if !pr.Size.IsValid() {
			return shared.DomainErrorf("INVALID_SIZE", "Unknown size %q", pr.Size)
		}
		if _, dup := seen[pr.Size]; dup {
			return shared.DomainErrorf("DUPLICATE_SIZE", "Size %q listed twice", pr.Size)
		}
		if !pr.Price.IsPositive() {
			return shared.NewDomainError("INVALID_PRICE", "Price must be positive")
		}
		seen[pr.Size] = struct{}{}
		out = append(out, ProductPrice{Size: pr.Size, Price: pr.Price.Round(3)})
	}
	p.Prices = out
	p.Touch()
	return nil
}

// PriceFor returns the price of the given size
func (p *Product) PriceFor(size Size) (decimal.Decimal, error) {
	for _, pr := range p.Prices {
		if pr.Size == size {
			return pr.Price, nil
		}
	}
	return decimal.Zero, ErrSizeNotAvailable
}

// LowestPrice returns the cheapest size price ("from" price in listings)
func (p *Product) LowestPrice() decimal.Decimal {
	if len(p.Prices) == 0 {
		return decimal.Zero
	}
	low := p.Prices[0].Price
	for _, pr := range p.Prices[1:] {
		if pr.Price.LessThan(low) {
			low = pr.Price
		}
	}
	return low
}

// SetAvailability marks the product as orderable or not
func (p *Product) SetAvailability(available bool) {
	if p.Available == available {
		return
	}
	p.Available = available
	p.Touch()
	p.AddDomainEvent(NewProductAvailabilityChangedEvent(p))
}

// SetImage sets the image URL
func (p *Product) SetImage(url string) {
	p.ImageURL = strings.TrimSpace(url)
	p.Touch()
}

// BelongsTo reports whether the product is sold by the restaurant
func (p *Product) BelongsTo(restaurantID uuid.UUID) bool {
	return p.RestaurantID == restaurantID
}

// MoveTo reassigns the product to another restaurant (used when merging duplicates)
func (p *Product) MoveTo(restaurantID uuid.UUID) {
	p.RestaurantID = restaurantID
	p.Touch()
}

func validateProductName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len([]rune(n)) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}
