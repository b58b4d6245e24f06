package order

import (
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutItem is one cart line
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Size      string    `json:"size" binding:"required,oneof=small medium large"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=20"`
}

// CheckoutRequest creates an order from a cart
type CheckoutRequest struct {
	RestaurantID    uuid.UUID      `json:"restaurant_id" binding:"required"`
	CustomerName    string         `json:"customer_name" binding:"required,min=2,max=100"`
	CustomerPhone   string         `json:"customer_phone" binding:"required"`
	CustomerAddress string         `json:"customer_address" binding:"required,max=500"`
	Latitude        *float64       `json:"latitude"`
	Longitude       *float64       `json:"longitude"`
	PaymentMethod   string         `json:"payment_method" binding:"omitempty,oneof=cash flouci"`
	Notes           string         `json:"notes" binding:"max=500"`
	Items           []CheckoutItem `json:"items" binding:"required,min=1,max=50,dive"`
	IdempotencyKey  string         `json:"idempotencyKey,omitempty" binding:"max=128"`
	// IdempotencyKeyAlt is the snake_case spelling, read when idempotencyKey is absent
	IdempotencyKeyAlt string `json:"idempotency_key,omitempty" binding:"max=128"`
	// CustomerID is taken from the session, never from the body
	CustomerID *uuid.UUID `json:"-"`
}

// idempotencyKey returns the client key: the header (copied into
// IdempotencyKey by the handler) or body idempotencyKey, then idempotency_key
func (r CheckoutRequest) idempotencyKey() string {
	if k := strings.TrimSpace(r.IdempotencyKey); k != "" {
		return k
	}
	return strings.TrimSpace(r.IdempotencyKeyAlt)
}

// OrderListFilter represents filter options for the order list
type OrderListFilter struct {
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search        string     `form:"search"`
	Status        string     `form:"status"`
	RestaurantID  *uuid.UUID `form:"-"`
	DriverID      *uuid.UUID `form:"-"`
	CustomerPhone string     `form:"customer_phone"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
	OrderBy       string     `form:"order_by"`
	OrderDir      string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UpdateStatusRequest moves an order along its lifecycle
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RejectRequest rejects an order
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// OrderItemResponse is an order line in API responses
type OrderItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	RestaurantID    uuid.UUID           `json:"restaurant_id"`
	CustomerID      *uuid.UUID          `json:"customer_id,omitempty"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerAddress string              `json:"customer_address"`
	Latitude        *float64            `json:"latitude"`
	Longitude       *float64            `json:"longitude"`
	Status          string              `json:"status"`
	Items           []OrderItemResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentID       string              `json:"payment_id,omitempty"`
	DriverID        *uuid.UUID          `json:"driver_id"`
	AssignedAt      *time.Time          `json:"assigned_at"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	Notes           string              `json:"notes"`
	RejectReason    string              `json:"reject_reason,omitempty"`
	Version         int                 `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// TrackResponse is the public status view of an order
type TrackResponse struct {
	ID             uuid.UUID       `json:"id"`
	Status         string          `json:"status"`
	PaymentStatus  string          `json:"payment_status"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	ItemCount      int             `json:"item_count"`
	DriverAssigned bool            `json:"driver_assigned"`
	AssignedAt     *time.Time      `json:"assigned_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentLinkResponse is returned when an online payment starts
type PaymentLinkResponse struct {
	Link      string `json:"link"`
	PaymentID string `json:"paymentId"`
}

// PaymentVerifyResponse reports the outcome of a payment verification
type PaymentVerifyResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	PaymentStatus string    `json:"payment_status"`
	Paid          bool      `json:"paid"`
}

// ToOrderResponse converts a domain Order to OrderResponse
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Size:        string(it.Size),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount(),
		}
	}
	resp := OrderResponse{
		ID:              o.ID,
		RestaurantID:    o.RestaurantID,
		CustomerID:      o.Customer.ID,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		CustomerAddress: o.Customer.Address,
		Status:          string(o.Status),
		Items:           items,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		TotalPrice:      o.TotalPrice,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentID:       o.PaymentID,
		DriverID:        o.DriverID,
		AssignedAt:      o.AssignedAt,
		DeliveredAt:     o.DeliveredAt,
		Notes:           o.Notes,
		RejectReason:    o.RejectReason,
		Version:         o.Version,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Customer.Location != nil {
		lat, lon := o.Customer.Location.Latitude, o.Customer.Location.Longitude
		resp.Latitude, resp.Longitude = &lat, &lon
	}
	return resp
}

// ToOrderResponses converts a slice of domain Orders
func ToOrderResponses(orders []order.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return out
}

// ToTrackResponse converts an order to its public view
func ToTrackResponse(o *order.Order) TrackResponse {
	return TrackResponse{
		ID:             o.ID,
		Status:         string(o.Status),
		PaymentStatus:  string(o.PaymentStatus),
		TotalPrice:     o.TotalPrice,
		ItemCount:      o.ItemCount(),
		DriverAssigned: o.DriverID != nil,
		AssignedAt:     o.AssignedAt,
		DeliveredAt:    o.DeliveredAt,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
