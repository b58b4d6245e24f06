package catalog

import (
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceInput is one size price in a product request
type PriceInput struct {
	Size  string          `json:"size" binding:"required,oneof=small medium large"`
	Price decimal.Decimal `json:"price" binding:"required"`
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	RestaurantID uuid.UUID    `json:"restaurant_id" binding:"required"`
	Name         string       `json:"name" binding:"required,min=1,max=200"`
	Description  string       `json:"description" binding:"max=2000"`
	ProductType  string       `json:"product_type" binding:"omitempty,oneof=pizza dish drink dessert grocery"`
	Category     string       `json:"category" binding:"max=100"`
	ImageURL     string       `json:"image_url" binding:"omitempty,max=1000"`
	Available    *bool        `json:"available"`
	Prices       []PriceInput `json:"prices" binding:"required,min=1,max=3,dive"`
}

// UpdateProductRequest replaces a product's fields and prices
type UpdateProductRequest struct {
	Name        string       `json:"name" binding:"required,min=1,max=200"`
	Description string       `json:"description" binding:"max=2000"`
	ProductType string       `json:"product_type" binding:"omitempty,oneof=pizza dish drink dessert grocery"`
	Category    string       `json:"category" binding:"max=100"`
	Available   *bool        `json:"available"`
	Prices      []PriceInput `json:"prices" binding:"required,min=1,max=3,dive"`
}

// AvailabilityRequest toggles whether a product can be ordered
type AvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// ProductListFilter represents filter options for the product list
type ProductListFilter struct {
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search       string     `form:"search"`
	RestaurantID *uuid.UUID `form:"-"`
	Category     string     `form:"category"`
	ProductType  string     `form:"product_type"`
	Available    *bool      `form:"available"`
	OrderBy      string     `form:"order_by"`
	OrderDir     string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// PriceResponse is one size price
type PriceResponse struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ProductType  string          `json:"product_type"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"image_url"`
	Available    bool            `json:"available"`
	Prices       []PriceResponse `json:"prices"`
	FromPrice    decimal.Decimal `json:"from_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *catalog.Product) ProductResponse {
	prices := make([]PriceResponse, len(p.Prices))
	for i, pr := range p.Prices {
		prices[i] = PriceResponse{Size: string(pr.Size), Price: pr.Price}
	}
	return ProductResponse{
		ID:           p.ID,
		RestaurantID: p.RestaurantID,
		Name:         p.Name,
		Description:  p.Description,
		ProductType:  string(p.ProductType),
		Category:     p.Category,
		ImageURL:     p.ImageURL,
		Available:    p.Available,
		Prices:       prices,
		FromPrice:    p.LowestPrice(),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of domain Products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}

func toDomainPrices(in []PriceInput) []catalog.ProductPrice {
	out := make([]catalog.ProductPrice, len(in))
	for i, p := range in {
		out[i] = catalog.ProductPrice{Size: catalog.Size(p.Size), Price: p.Price}
	}
	return out
}
