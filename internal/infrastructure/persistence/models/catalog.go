package models

import (
	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate
type ProductModel struct {
	AggregateModel
	RestaurantID uuid.UUID           `gorm:"type:uuid;not null;index"`
	Name         string              `gorm:"type:varchar(200);not null"`
	Description  string              `gorm:"type:text;not null;default:''"`
	ProductType  catalog.ProductType `gorm:"type:varchar(20);not null;default:'pizza';index"`
	Category     string              `gorm:"type:varchar(100);not null;default:'';index"`
	ImageURL     string              `gorm:"type:text;not null;default:''"`
	Available    bool                `gorm:"not null;default:true"`
	Prices       []ProductPriceModel `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ProductPriceModel is one size price of a product
type ProductPriceModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_prices_size,priority:1"`
	Size      catalog.Size    `gorm:"type:varchar(10);not null;uniqueIndex:idx_product_prices_size,priority:2"`
	Price     decimal.Decimal `gorm:"type:numeric(12,3);not null"`
}

// TableName returns the table name for GORM
func (ProductPriceModel) TableName() string {
	return "product_prices"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Description:  m.Description,
		ProductType:  m.ProductType,
		Category:     m.Category,
		ImageURL:     m.ImageURL,
		Available:    m.Available,
		Prices:       make([]catalog.ProductPrice, 0, len(m.Prices)),
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	for _, price := range m.Prices {
		p.Prices = append(p.Prices, catalog.ProductPrice{Size: price.Size, Price: price.Price})
	}
	return p
}

// FromDomain populates the persistence model from a domain Product.
// Price rows get fresh ids because Save replaces them wholesale.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.RestaurantID = p.RestaurantID
	m.Name = p.Name
	m.Description = p.Description
	m.ProductType = p.ProductType
	m.Category = p.Category
	m.ImageURL = p.ImageURL
	m.Available = p.Available
	m.Prices = make([]ProductPriceModel, 0, len(p.Prices))
	for _, price := range p.Prices {
		m.Prices = append(m.Prices, ProductPriceModel{
			ID:        uuid.New(),
			ProductID: p.ID,
			Size:      price.Size,
			Price:     price.Price,
		})
	}
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
