package catalog

import (
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeProduct is the aggregate type name used in events
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeProductCreated             = "ProductCreated"
	EventTypeProductAvailabilityChanged = "ProductAvailabilityChanged"
)

// ProductCreatedEvent is raised when a product is added to a menu
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID `json:"product_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(p *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		RestaurantID:    p.RestaurantID,
		Name:            p.Name,
	}
}

// ProductAvailabilityChangedEvent is raised when a product is enabled or disabled
type ProductAvailabilityChangedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Available bool      `json:"available"`
}

// NewProductAvailabilityChangedEvent creates a new ProductAvailabilityChangedEvent
func NewProductAvailabilityChangedEvent(p *Product) *ProductAvailabilityChangedEvent {
	return &ProductAvailabilityChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductAvailabilityChanged, AggregateTypeProduct, p.ID),
		ProductID:       p.ID,
		Available:       p.Available,
	}
}
