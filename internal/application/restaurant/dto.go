package restaurant

import (
	"time"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpeningHoursInput is the opening window in requests and responses
type OpeningHoursInput struct {
	Open      string `json:"open" binding:"required"`
	Close     string `json:"close" binding:"required"`
	ClosedDay string `json:"closed_day"`
}

func (in OpeningHoursInput) toDomain() (restaurant.OpeningHours, error) {
	return restaurant.NewOpeningHours(in.Open, in.Close, in.ClosedDay)
}

// RestaurantRequest creates or replaces a restaurant. Omitted opening hours
// and coordinates keep their stored values.
type RestaurantRequest struct {
	Name         string             `json:"name" binding:"required,min=1,max=200"`
	Phone        string             `json:"phone" binding:"required"`
	Address      string             `json:"address" binding:"required,max=500"`
	Categories   []string           `json:"categories" binding:"max=20"`
	DeliveryTime string             `json:"delivery_time" binding:"max=50"`
	MinOrder     *decimal.Decimal   `json:"min_order"`
	Rating       *decimal.Decimal   `json:"rating"`
	OpeningHours *OpeningHoursInput `json:"opening_hours"`
	Latitude     *float64           `json:"latitude"`
	Longitude    *float64           `json:"longitude"`
	ImageURL     string             `json:"image_url" binding:"omitempty,max=1000"`
}

// ListFilter filters the restaurant list
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Category string `form:"category"`
	IsOpen   *bool  `form:"is_open"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// CoordinatesRequest sets a restaurant's position
type CoordinatesRequest struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

// RestaurantResponse is a restaurant in API responses
type RestaurantResponse struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Phone           string             `json:"phone"`
	Address         string             `json:"address"`
	Categories      []string           `json:"categories"`
	IsOpen          bool               `json:"is_open"`
	AcceptingOrders bool               `json:"accepting_orders"`
	OpeningHours    *OpeningHoursInput `json:"opening_hours"`
	DeliveryTime    string             `json:"delivery_time"`
	MinOrder        decimal.Decimal    `json:"min_order"`
	Rating          decimal.Decimal    `json:"rating"`
	Latitude        *float64           `json:"latitude"`
	Longitude       *float64           `json:"longitude"`
	ImageURL        string             `json:"image_url"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ToRestaurantResponse converts the aggregate for output
func ToRestaurantResponse(r *restaurant.Restaurant, now time.Time) RestaurantResponse {
	resp := RestaurantResponse{
		ID:              r.ID,
		Name:            r.Name,
		Phone:           r.Phone,
		Address:         r.Address,
		Categories:      r.Categories,
		IsOpen:          r.IsOpen,
		AcceptingOrders: r.AcceptsOrdersAt(now),
		DeliveryTime:    r.DeliveryTime,
		MinOrder:        r.MinOrder,
		Rating:          r.Rating,
		ImageURL:        r.ImageURL,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if !r.OpeningHours.IsZero() {
		resp.OpeningHours = &OpeningHoursInput{
			Open:      r.OpeningHours.Open,
			Close:     r.OpeningHours.Close,
			ClosedDay: r.OpeningHours.ClosedDay,
		}
	}
	if r.Location != nil {
		lat, lon := r.Location.Latitude, r.Location.Longitude
		resp.Latitude, resp.Longitude = &lat, &lon
	}
	return resp
}
