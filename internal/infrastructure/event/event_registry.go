package event

import (
	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
)

// RegisterAllEvents makes every published domain event decodable
func RegisterAllEvents(s *EventSerializer) {
	Register[order.OrderCreatedEvent](s, order.EventTypeOrderCreated)
	Register[order.OrderStatusChangedEvent](s, order.EventTypeOrderStatusChanged)
	Register[order.OrderDriverAssignedEvent](s, order.EventTypeOrderDriverAssigned)

	Register[restaurant.RestaurantCreatedEvent](s, restaurant.EventTypeRestaurantCreated)
	Register[restaurant.RestaurantOpenToggledEvent](s, restaurant.EventTypeRestaurantOpenToggled)

	Register[catalog.ProductCreatedEvent](s, catalog.EventTypeProductCreated)
	Register[catalog.ProductAvailabilityChangedEvent](s, catalog.EventTypeProductAvailabilityChanged)
}
