package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Limits applied at checkout
const (
	MaxItems           = 50
	MaxQuantityPerItem = 20
)

// Item is a line of an order. UnitPrice is the price at order time.
type Item struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Size        catalog.Size
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Amount returns quantity times unit price
func (i Item) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer holds the delivery contact captured at checkout
type Customer struct {
	ID       *uuid.UUID
	Name     string
	Phone    string
	Address  string
	Location *valueobject.GeoPoint
}

// Order is the aggregate root of a customer order
type Order struct {
	shared.BaseAggregateRoot
	RestaurantID  uuid.UUID
	Customer      Customer
	Status        Status
	Items         []Item
	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	TotalPrice    decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentID     string
	DriverID      *uuid.UUID
	AssignedAt    *time.Time
	Notes         string
	RejectReason  string
	DeliveredAt   *time.Time
}

// NewOrder creates a pending order without items
func NewOrder(restaurantID uuid.UUID, customer Customer, method PaymentMethod) (*Order, error) {
	if restaurantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_RESTAURANT", "Restaurant ID cannot be empty")
	}
	name := strings.TrimSpace(customer.Name)
	if len([]rune(name)) < 2 || len([]rune(name)) > 100 {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name must be between 2 and 100 characters")
	}
	phone, err := valueobject.NewPhone(customer.Phone)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PHONE", "Invalid phone length")
	}
	if strings.TrimSpace(customer.Address) == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Delivery address cannot be empty")
	}
	if method == "" {
		method = PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, shared.DomainErrorf("INVALID_PAYMENT_METHOD", "Unknown payment method %q", method)
	}

	customer.Name = name
	customer.Phone = phone.Local()
	customer.Address = strings.TrimSpace(customer.Address)

	paymentStatus := PaymentStatusUnpaid
	if method == PaymentMethodFlouci {
		paymentStatus = PaymentStatusPending
	}

	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		RestaurantID:      restaurantID,
		Customer:          customer,
		Status:            StatusPending,
		Items:             make([]Item, 0),
		Subtotal:          decimal.Zero,
		DeliveryFee:       decimal.Zero,
		TotalPrice:        decimal.Zero,
		PaymentMethod:     method,
		PaymentStatus:     paymentStatus,
	}, nil
}

// AddItem adds a line for a product in a size, priced from the product
func (o *Order) AddItem(product *catalog.Product, size catalog.Size, quantity int) error {
	if o.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "Cannot add items to an order that is no longer pending")
	}
	if !product.BelongsTo(o.RestaurantID) {
		return shared.DomainErrorf("PRODUCT_NOT_IN_RESTAURANT", "Product %s is not sold by this restaurant", product.Name)
	}
	if !product.Available {
		return shared.DomainErrorf("PRODUCT_UNAVAILABLE", "Product %s is not available", product.Name)
	}
	if quantity < 1 || quantity > MaxQuantityPerItem {
		return shared.DomainErrorf("INVALID_QUANTITY", "Quantity must be between 1 and %d", MaxQuantityPerItem)
	}
	price, err := product.PriceFor(size)
	if err != nil {
		return err
	}
	for i := range o.Items {
		if o.Items[i].ProductID == product.ID && o.Items[i].Size == size {
			if o.Items[i].Quantity+quantity > MaxQuantityPerItem {
				return shared.DomainErrorf("INVALID_QUANTITY", "Quantity must be between 1 and %d", MaxQuantityPerItem)
			}
			o.Items[i].Quantity += quantity
			o.recalculateTotals()
			return nil
		}
	}
	if len(o.Items) >= MaxItems {
		return shared.DomainErrorf("TOO_MANY_ITEMS", "An order cannot have more than %d lines", MaxItems)
	}
	o.Items = append(o.Items, Item{
		ID:          uuid.New(),
		OrderID:     o.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        size,
		Quantity:    quantity,
		UnitPrice:   price,
	})
	o.recalculateTotals()
	return nil
}

// SetDeliveryFee sets the fee added to the subtotal
func (o *Order) SetDeliveryFee(fee decimal.Decimal) error {
	if fee.IsNegative() {
		return shared.NewDomainError("INVALID_DELIVERY_FEE", "Delivery fee cannot be negative")
	}
	o.DeliveryFee = fee
	o.recalculateTotals()
	return nil
}

// Place validates the order against the restaurant minimum and raises
// OrderCreated. It must be called once, after all items were added.
func (o *Order) Place(minOrder decimal.Decimal) error {
	if len(o.Items) == 0 {
		return shared.NewDomainError("NO_ITEMS", "Cannot place an order without items")
	}
	if o.Subtotal.LessThan(minOrder) {
		return shared.NewDomainError("MIN_ORDER_NOT_REACHED",
			fmt.Sprintf("Minimum order is %s, subtotal is %s", minOrder.StringFixed(3), o.Subtotal.StringFixed(3)))
	}
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return nil
}

// TransitionTo moves the order to the target status
func (o *Order) TransitionTo(target Status) error {
	if !target.IsValid() {
		return shared.DomainErrorf("INVALID_STATUS", "Unknown status %q", target)
	}
	if target == StatusRejected {
		return o.Reject("")
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.DomainErrorf("INVALID_STATE", "Cannot move order from %s to %s", o.Status, target)
	}
	if target == StatusDelivery && o.DriverID == nil {
		return shared.NewDomainError("NO_DRIVER", "An order must have a driver before it goes out for delivery")
	}
	from := o.Status
	o.Status = target
	if target == StatusDelivered {
		now := time.Now()
		o.DeliveredAt = &now
	}
	o.Touch()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, from))
	return nil
}

// Reject rejects the order with an optional reason
func (o *Order) Reject(reason string) error {
	if !o.Status.CanTransitionTo(StatusRejected) {
		return shared.DomainErrorf("INVALID_STATE", "Cannot reject order in %s status", o.Status)
	}
	from := o.Status
	o.Status = StatusRejected
	o.RejectReason = strings.TrimSpace(reason)
	o.Touch()
	o.AddDomainEvent(NewOrderStatusChangedEvent(o, from))
	return nil
}

// AssignDriver claims the order for a driver. A pending order becomes
// accepted. The persistent guard lives in OrderRepository.AssignDriver;
// this method applies the same rules to the in-memory aggregate.
func (o *Order) AssignDriver(driverID uuid.UUID, at time.Time) error {
	if driverID == uuid.Nil {
		return shared.NewDomainError("INVALID_DRIVER", "Driver ID cannot be empty")
	}
	if o.DriverID != nil {
		return ErrAlreadyAssigned
	}
	if !o.Status.IsAssignable() {
		return shared.DomainErrorf("INVALID_STATE", "Cannot assign a driver to an order in %s status", o.Status)
	}
	from := o.Status
	o.DriverID = &driverID
	o.AssignedAt = &at
	if o.Status == StatusPending {
		o.Status = StatusAccepted
	}
	o.Touch()
	o.AddDomainEvent(NewOrderDriverAssignedEvent(o))
	if from != o.Status {
		o.AddDomainEvent(NewOrderStatusChangedEvent(o, from))
	}
	return nil
}

// StartPayment records the gateway payment id
func (o *Order) StartPayment(paymentID string) error {
	if o.PaymentMethod != PaymentMethodFlouci {
		return shared.NewDomainError("INVALID_STATE", "Only online orders can start a payment")
	}
	if o.PaymentStatus == PaymentStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Order is already paid")
	}
	if o.Status == StatusRejected {
		return shared.NewDomainError("INVALID_STATE", "Cannot pay for a rejected order")
	}
	o.PaymentID = paymentID
	o.PaymentStatus = PaymentStatusPending
	o.Touch()
	return nil
}

// MarkPaid records a successful gateway verification
func (o *Order) MarkPaid() {
	o.PaymentStatus = PaymentStatusPaid
	o.Touch()
}

// MarkPaymentFailed records a failed gateway verification
func (o *Order) MarkPaymentFailed() {
	if o.PaymentStatus == PaymentStatusPaid {
		return
	}
	o.PaymentStatus = PaymentStatusFailed
	o.Touch()
}

// TotalMoney returns the total as Money
func (o *Order) TotalMoney() valueobject.Money {
	return valueobject.NewMoneyTND(o.TotalPrice)
}

// ItemCount returns the number of units ordered
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) recalculateTotals() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.Amount())
	}
	o.Subtotal = subtotal
	o.TotalPrice = subtotal.Add(o.DeliveryFee)
	o.Touch()
}
