package models

import (
	"encoding/json"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/shopspring/decimal"
)

// RestaurantModel is the persistence model for the Restaurant aggregate.
// OpeningHours keeps the raw column text so rows still in the legacy
// encoding can be found and rewritten by the maintenance jobs.
type RestaurantModel struct {
	AggregateModel
	Name         string          `gorm:"type:varchar(200);not null;index"`
	Phone        string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	Address      string          `gorm:"type:text;not null"`
	Categories   string          `gorm:"type:text;not null;default:'[]'"`
	IsOpen       bool            `gorm:"not null;default:true"`
	OpeningHours string          `gorm:"type:text;not null;default:''"`
	DeliveryTime string          `gorm:"type:varchar(50);not null;default:''"`
	MinOrder     decimal.Decimal `gorm:"type:numeric(12,3);not null;default:0"`
	Rating       decimal.Decimal `gorm:"type:numeric(3,2);not null;default:0"`
	Latitude     *float64
	Longitude    *float64
	ImageURL     string `gorm:"type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (RestaurantModel) TableName() string {
	return "restaurants"
}

// ToDomain converts the persistence model to a domain Restaurant.
// Opening hours that cannot be parsed read as "always open" and are
// written back unchanged by FromDomain.
func (m *RestaurantModel) ToDomain() *restaurant.Restaurant {
	r := &restaurant.Restaurant{
		Name:         m.Name,
		Phone:        m.Phone,
		Address:      m.Address,
		IsOpen:       m.IsOpen,
		DeliveryTime: m.DeliveryTime,
		MinOrder:     m.MinOrder,
		Rating:       m.Rating,
		Location:     joinLocation(m.Latitude, m.Longitude),
		ImageURL:     m.ImageURL,
	}
	m.PopulateAggregateRoot(&r.BaseAggregateRoot)

	r.RestoreOpeningHours(m.OpeningHours)
	if m.Categories != "" {
		_ = json.Unmarshal([]byte(m.Categories), &r.Categories)
	}
	if r.Categories == nil {
		r.Categories = []string{}
	}
	return r
}

// FromDomain populates the persistence model from a domain Restaurant
func (m *RestaurantModel) FromDomain(r *restaurant.Restaurant) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.Name = r.Name
	m.Phone = r.Phone
	m.Address = r.Address
	m.IsOpen = r.IsOpen
	m.OpeningHours = r.StoredOpeningHours()
	m.DeliveryTime = r.DeliveryTime
	m.MinOrder = r.MinOrder
	m.Rating = r.Rating
	m.Latitude, m.Longitude = splitLocation(r.Location)
	m.ImageURL = r.ImageURL

	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	b, _ := json.Marshal(categories)
	m.Categories = string(b)
}

// RestaurantModelFromDomain creates a new persistence model from a domain Restaurant
func RestaurantModelFromDomain(r *restaurant.Restaurant) *RestaurantModel {
	m := &RestaurantModel{}
	m.FromDomain(r)
	return m
}
