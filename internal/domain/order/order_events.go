package order

import (
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeOrder is the aggregate type name used in events
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated        = "OrderCreated"
	EventTypeOrderStatusChanged  = "OrderStatusChanged"
	EventTypeOrderDriverAssigned = "OrderDriverAssigned"
)

// OrderCreatedEvent is raised when a customer places an order.
// It starts the driver dispatch.
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID       `json:"order_id"`
	RestaurantID  uuid.UUID       `json:"restaurant_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Address       string          `json:"address"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		RestaurantID:    o.RestaurantID,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		Address:         o.Customer.Address,
		TotalPrice:      o.TotalPrice,
		PaymentMethod:   o.PaymentMethod,
		ItemCount:       o.ItemCount(),
	}
}

// OrderStatusChangedEvent is raised on every status transition
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID  `json:"order_id"`
	From     Status     `json:"from"`
	To       Status     `json:"to"`
	DriverID *uuid.UUID `json:"driver_id,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// NewOrderStatusChangedEvent creates a new OrderStatusChangedEvent
func NewOrderStatusChangedEvent(o *Order, from Status) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		From:            from,
		To:              o.Status,
		DriverID:        o.DriverID,
		Reason:          o.RejectReason,
	}
}

// OrderDriverAssignedEvent is raised when a driver claims an order
type OrderDriverAssignedEvent struct {
	shared.BaseDomainEvent
	OrderID  uuid.UUID `json:"order_id"`
	DriverID uuid.UUID `json:"driver_id"`
	Status   Status    `json:"status"`
}

// NewOrderDriverAssignedEvent creates a new OrderDriverAssignedEvent
func NewOrderDriverAssignedEvent(o *Order) *OrderDriverAssignedEvent {
	var driverID uuid.UUID
	if o.DriverID != nil {
		driverID = *o.DriverID
	}
	return &OrderDriverAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDriverAssigned, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		DriverID:        driverID,
		Status:          o.Status,
	}
}
