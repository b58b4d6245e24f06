package restaurant

import (
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeRestaurant is the aggregate type name used in events
const AggregateTypeRestaurant = "Restaurant"

// Event type constants
const (
	EventTypeRestaurantCreated     = "RestaurantCreated"
	EventTypeRestaurantOpenToggled = "RestaurantOpenToggled"
)

// RestaurantCreatedEvent is raised when a restaurant is registered
type RestaurantCreatedEvent struct {
	shared.BaseDomainEvent
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
}

// NewRestaurantCreatedEvent creates a new RestaurantCreatedEvent
func NewRestaurantCreatedEvent(r *Restaurant) *RestaurantCreatedEvent {
	return &RestaurantCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRestaurantCreated, AggregateTypeRestaurant, r.ID),
		RestaurantID:    r.ID,
		Name:            r.Name,
	}
}

// RestaurantOpenToggledEvent is raised when the open flag changes
type RestaurantOpenToggledEvent struct {
	shared.BaseDomainEvent
	RestaurantID uuid.UUID `json:"restaurant_id"`
	IsOpen       bool      `json:"is_open"`
}

// NewRestaurantOpenToggledEvent creates a new RestaurantOpenToggledEvent
func NewRestaurantOpenToggledEvent(r *Restaurant) *RestaurantOpenToggledEvent {
	return &RestaurantOpenToggledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRestaurantOpenToggled, AggregateTypeRestaurant, r.ID),
		RestaurantID:    r.ID,
		IsOpen:          r.IsOpen,
	}
}
