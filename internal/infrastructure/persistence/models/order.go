package models

import (
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate
type OrderModel struct {
	AggregateModel
	RestaurantID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	CustomerID      *uuid.UUID `gorm:"type:uuid;index"`
	CustomerName    string     `gorm:"type:varchar(100);not null"`
	CustomerPhone   string     `gorm:"type:varchar(20);not null;index"`
	CustomerAddress string     `gorm:"type:text;not null"`
	Latitude        *float64
	Longitude       *float64
	Status          order.Status        `gorm:"type:varchar(20);not null;default:'pending';index"`
	Subtotal        decimal.Decimal     `gorm:"type:numeric(12,3);not null;default:0"`
	DeliveryFee     decimal.Decimal     `gorm:"type:numeric(12,3);not null;default:0"`
	TotalPrice      decimal.Decimal     `gorm:"type:numeric(12,3);not null;default:0"`
	PaymentMethod   order.PaymentMethod `gorm:"type:varchar(20);not null;default:'cash'"`
	PaymentStatus   order.PaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid'"`
	PaymentID       string              `gorm:"type:varchar(100);not null;default:'';index"`
	DriverID        *uuid.UUID          `gorm:"type:uuid;index"`
	AssignedAt      *time.Time
	Notes           string `gorm:"type:text;not null;default:''"`
	RejectReason    string `gorm:"type:text;not null;default:''"`
	DeliveredAt     *time.Time
	Items           []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel is one line of an order
type OrderItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Size        catalog.Size    `gorm:"type:varchar(10);not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,3);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		RestaurantID: m.RestaurantID,
		Customer: order.Customer{
			ID:       m.CustomerID,
			Name:     m.CustomerName,
			Phone:    m.CustomerPhone,
			Address:  m.CustomerAddress,
			Location: joinLocation(m.Latitude, m.Longitude),
		},
		Status:        m.Status,
		Subtotal:      m.Subtotal,
		DeliveryFee:   m.DeliveryFee,
		TotalPrice:    m.TotalPrice,
		PaymentMethod: m.PaymentMethod,
		PaymentStatus: m.PaymentStatus,
		PaymentID:     m.PaymentID,
		DriverID:      m.DriverID,
		AssignedAt:    m.AssignedAt,
		Notes:         m.Notes,
		RejectReason:  m.RejectReason,
		DeliveredAt:   m.DeliveredAt,
		Items:         make([]order.Item, 0, len(m.Items)),
	}
	m.PopulateAggregateRoot(&o.BaseAggregateRoot)
	for _, item := range m.Items {
		o.Items = append(o.Items, order.Item{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return o
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.RestaurantID = o.RestaurantID
	m.CustomerID = o.Customer.ID
	m.CustomerName = o.Customer.Name
	m.CustomerPhone = o.Customer.Phone
	m.CustomerAddress = o.Customer.Address
	m.Latitude, m.Longitude = splitLocation(o.Customer.Location)
	m.Status = o.Status
	m.Subtotal = o.Subtotal
	m.DeliveryFee = o.DeliveryFee
	m.TotalPrice = o.TotalPrice
	m.PaymentMethod = o.PaymentMethod
	m.PaymentStatus = o.PaymentStatus
	m.PaymentID = o.PaymentID
	m.DriverID = o.DriverID
	m.AssignedAt = o.AssignedAt
	m.Notes = o.Notes
	m.RejectReason = o.RejectReason
	m.DeliveredAt = o.DeliveredAt
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		id := item.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		m.Items = append(m.Items, OrderItemModel{
			ID:          id,
			OrderID:     o.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// IdempotencyKeyModel stores checkout idempotency keys
type IdempotencyKeyModel struct {
	Key         string    `gorm:"type:varchar(128);primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null"`
	RequestHash string    `gorm:"type:varchar(64);not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IdempotencyKeyModel) TableName() string {
	return "idempotency_keys"
}

// ToDomain converts the persistence model to a domain IdempotencyKey
func (m *IdempotencyKeyModel) ToDomain() *order.IdempotencyKey {
	return &order.IdempotencyKey{
		Key:         m.Key,
		OrderID:     m.OrderID,
		RequestHash: m.RequestHash,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
	}
}

// IdempotencyKeyModelFromDomain creates a persistence model from a domain IdempotencyKey
func IdempotencyKeyModelFromDomain(k *order.IdempotencyKey) *IdempotencyKeyModel {
	return &IdempotencyKeyModel{
		Key:         k.Key,
		OrderID:     k.OrderID,
		RequestHash: k.RequestHash,
		ExpiresAt:   k.ExpiresAt,
		CreatedAt:   k.CreatedAt,
	}
}
