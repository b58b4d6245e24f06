package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/delivery/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long a checkout key replays its order
const DefaultIdempotencyTTL = 24 * time.Hour

// ErrInvalidPhoneLength is the checkout validation error for phone numbers
var ErrInvalidPhoneLength = shared.NewDomainError("VALIDATION_ERROR", "invalid phone length")

// FeeSource provides the current delivery fee
type FeeSource interface {
	DeliveryFee(ctx context.Context) (decimal.Decimal, error)
}

// Metrics records order activity. Implemented by telemetry.DeliveryMetrics.
type Metrics interface {
	RecordOrderCreated(ctx context.Context, restaurantID, paymentMethod string, amountMillimes int64)
	RecordStatusChange(ctx context.Context, status string)
	RecordPayment(ctx context.Context, method, status string)
}

// Service handles checkout and the order lifecycle
type Service struct {
	orders         order.OrderRepository
	keys           order.IdempotencyKeyRepository
	restaurants    restaurant.RestaurantRepository
	products       catalog.ProductRepository
	drivers        driver.DriverRepository
	fees           FeeSource
	geocoder       shared.Geocoder
	gateway        order.PaymentGateway
	metrics        Metrics
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	idempotencyTTL time.Duration
	now            func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithGeocoder enables best-effort geocoding of delivery addresses
func WithGeocoder(g shared.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithPaymentGateway enables online payments
func WithPaymentGateway(g order.PaymentGateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithMetrics records order metrics
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFeeSource sets where the delivery fee comes from
func WithFeeSource(f FeeSource) Option {
	return func(s *Service) { s.fees = f }
}

// WithIdempotencyTTL overrides DefaultIdempotencyTTL
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithLocation evaluates opening hours in loc
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.now = func() time.Time { return time.Now().In(loc) }
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an order service
func NewService(
	orders order.OrderRepository,
	keys order.IdempotencyKeyRepository,
	restaurants restaurant.RestaurantRepository,
	products catalog.ProductRepository,
	drivers driver.DriverRepository,
	opts ...Option,
) *Service {
	s := &Service{
		orders:         orders,
		keys:           keys,
		restaurants:    restaurants,
		products:       products,
		drivers:        drivers,
		logger:         zap.NewNop(),
		idempotencyTTL: DefaultIdempotencyTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Checkout validates a cart and places an order. When the request carries
// an idempotency key that already produced an order with the same payload,
// that order is returned with replayed set and nothing new is created.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (resp *OrderResponse, replayed bool, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "checkout",
		telemetry.AttrRestaurantID.String(req.RestaurantID.String()))
	defer func() {
		if resp != nil {
			span.SetAttributes(telemetry.AttrOrderID.String(resp.ID.String()), telemetry.AttrReplayed.Bool(replayed))
		}
		telemetry.RecordError(span, err)
		span.End()
	}()

	if err := validatePhone(req.CustomerPhone); err != nil {
		return nil, false, err
	}

	key := req.idempotencyKey()
	if len(key) > 128 {
		return nil, false, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key must be 1 to 128 characters")
	}
	hash := requestHash(req)
	if key != "" {
		existing, err := s.replay(ctx, key, hash)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			r := ToOrderResponse(existing)
			return &r, true, nil
		}
	}

	o, minOrder, err := s.buildOrder(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if err := o.Place(minOrder); err != nil {
		return nil, false, err
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, false, err
	}

	if key != "" {
		winner, err := s.rememberKey(ctx, key, hash, o)
		if err != nil {
			return nil, false, err
		}
		if winner != nil {
			r := ToOrderResponse(winner)
			return &r, true, nil
		}
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(ctx, o.RestaurantID.String(), string(o.PaymentMethod), o.TotalMoney().Millimes())
	}
	s.logger.Info("order placed",
		zap.String("order_id", o.ID.String()),
		zap.String("restaurant_id", o.RestaurantID.String()),
		zap.String("total", o.TotalPrice.StringFixed(3)),
		zap.String("payment_method", string(o.PaymentMethod)))
	s.publish(ctx, o)

	r := ToOrderResponse(o)
	return &r, false, nil
}

// replay returns the order a live key produced, nil when the key is unknown
// or expired, and ErrIdempotencyKeyReused for a different payload.
func (s *Service) replay(ctx context.Context, key, hash string) (*order.Order, error) {
	k, err := s.keys.Find(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if k.IsExpired(s.now()) {
		return nil, nil
	}
	if !k.Matches(hash) {
		return nil, order.ErrIdempotencyKeyReused
	}
	o, err := s.orders.FindByID(ctx, k.OrderID)
	if err != nil {
		return nil, fmt.Errorf("replay idempotency key: %w", err)
	}
	return o, nil
}

// rememberKey binds key to the freshly saved order. When a concurrent
// request stored the same key first, the new order is discarded and the
// winner's order is returned.
func (s *Service) rememberKey(ctx context.Context, key, hash string, o *order.Order) (*order.Order, error) {
	k, err := order.NewIdempotencyKey(key, o.ID, hash, s.idempotencyTTL)
	if err != nil {
		_ = s.orders.Delete(ctx, o.ID)
		return nil, err
	}
	err = s.keys.Save(ctx, k)
	if err == nil {
		return nil, nil
	}
	if delErr := s.orders.Delete(ctx, o.ID); delErr != nil {
		s.logger.Error("discard duplicate order", zap.String("order_id", o.ID.String()), zap.Error(delErr))
	}
	if !errors.Is(err, shared.ErrAlreadyExists) {
		return nil, err
	}
	winner, err := s.replay(ctx, key, hash)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, shared.ErrConflict
	}
	return winner, nil
}

func (s *Service) buildOrder(ctx context.Context, req CheckoutRequest) (*order.Order, decimal.Decimal, error) {
	rest, err := s.restaurants.FindByID(ctx, req.RestaurantID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if !rest.AcceptsOrdersAt(s.now()) {
		return nil, decimal.Zero, order.ErrRestaurantClosed
	}

	location, err := valueobject.GeoPointFromPtrs(req.Latitude, req.Longitude)
	if err != nil {
		return nil, decimal.Zero, shared.NewDomainError("VALIDATION_ERROR", "invalid coordinates")
	}
	o, err := order.NewOrder(rest.ID, order.Customer{
		ID:       req.CustomerID,
		Name:     req.CustomerName,
		Phone:    req.CustomerPhone,
		Address:  req.CustomerAddress,
		Location: location,
	}, order.PaymentMethod(req.PaymentMethod))
	if err != nil {
		return nil, decimal.Zero, err
	}
	o.Notes = strings.TrimSpace(req.Notes)

	if len(req.Items) == 0 {
		return nil, decimal.Zero, shared.NewDomainError("NO_ITEMS", "Cannot place an order without items")
	}
	if len(req.Items) > order.MaxItems {
		return nil, decimal.Zero, shared.DomainErrorf("TOO_MANY_ITEMS", "An order cannot have more than %d lines", order.MaxItems)
	}
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}
	byID := make(map[uuid.UUID]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for _, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, decimal.Zero, shared.DomainErrorf("PRODUCT_NOT_FOUND", "Product %s not found", it.ProductID)
		}
		if err := o.AddItem(p, catalog.Size(it.Size), it.Quantity); err != nil {
			return nil, decimal.Zero, err
		}
	}

	if s.fees != nil {
		fee, err := s.fees.DeliveryFee(ctx)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if err := o.SetDeliveryFee(fee); err != nil {
			return nil, decimal.Zero, err
		}
	}

	if o.Customer.Location == nil && s.geocoder != nil {
		point, err := s.geocoder.Geocode(ctx, o.Customer.Address)
		if err != nil {
			s.logger.Info("delivery address not geocoded",
				logger.Masked("address", o.Customer.Address),
				zap.Error(err))
		} else {
			o.Customer.Location = &point
		}
	}
	return o, rest.MinOrder, nil
}

// Get returns an order by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// Track returns the public status view of an order
func (s *Service) Track(ctx context.Context, id uuid.UUID) (*TrackResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToTrackResponse(o)
	return &resp, nil
}

// List returns a page of orders and the total count
func (s *Service) List(ctx context.Context, filter OrderListFilter) ([]OrderResponse, int64, error) {
	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}.Normalize()

	if filter.Status != "" {
		status := order.Status(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.DomainErrorf("INVALID_STATUS", "Unknown status %q", filter.Status)
		}
		domainFilter.Filters["status"] = status
	}
	if filter.RestaurantID != nil {
		domainFilter.Filters["restaurant_id"] = *filter.RestaurantID
	}
	if filter.DriverID != nil {
		domainFilter.Filters["driver_id"] = *filter.DriverID
	}
	if filter.CustomerPhone != "" {
		phone, err := valueobject.NewPhone(filter.CustomerPhone)
		if err != nil {
			return nil, 0, ErrInvalidPhoneLength
		}
		domainFilter.Filters["customer_phone"] = phone.Local()
	}
	if filter.From != nil {
		domainFilter.Filters["from"] = *filter.From
	}
	if filter.To != nil {
		// inclusive end date
		domainFilter.Filters["to"] = filter.To.AddDate(0, 0, 1)
	}

	orders, err := s.orders.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.orders.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToOrderResponses(orders), total, nil
}

// ListForDriver lists the orders assigned to a driver
func (s *Service) ListForDriver(ctx context.Context, driverID uuid.UUID, filter OrderListFilter) ([]OrderResponse, int64, error) {
	filter.DriverID = &driverID
	filter.RestaurantID = nil
	return s.List(ctx, filter)
}

// UpdateStatus moves an order to a new status (admin)
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*OrderResponse, error) {
	return s.changeStatus(ctx, id, nil, func(o *order.Order) error {
		return o.TransitionTo(order.Status(status))
	})
}

// UpdateStatusAsDriver moves an order assigned to driverID to a new status
func (s *Service) UpdateStatusAsDriver(ctx context.Context, id, driverID uuid.UUID, status string) (*OrderResponse, error) {
	return s.changeStatus(ctx, id, &driverID, func(o *order.Order) error {
		return o.TransitionTo(order.Status(status))
	})
}

// Reject rejects an order with a reason
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.changeStatus(ctx, id, nil, func(o *order.Order) error {
		return o.Reject(reason)
	})
}

func (s *Service) changeStatus(ctx context.Context, id uuid.UUID, asDriver *uuid.UUID, apply func(*order.Order) error) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if asDriver != nil && (o.DriverID == nil || *o.DriverID != *asDriver) {
		return nil, shared.ErrForbidden
	}
	if err := apply(o); err != nil {
		return nil, err
	}
	if err := s.orders.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatusChange(ctx, string(o.Status))
	}
	s.logger.Info("order status changed",
		zap.String("order_id", o.ID.String()),
		zap.String("status", string(o.Status)))
	if o.Status.IsTerminal() && o.DriverID != nil {
		s.releaseDriver(ctx, *o.DriverID)
	}
	s.publish(ctx, o)

	resp := ToOrderResponse(o)
	return &resp, nil
}

// releaseDriver puts a driver back to available once none of their
// orders is still in flight. Errors are logged.
func (s *Service) releaseDriver(ctx context.Context, driverID uuid.UUID) {
	if s.drivers == nil {
		return
	}
	active, err := s.orders.CountActiveByDriver(ctx, driverID)
	if err != nil {
		s.logger.Warn("count driver orders", zap.String("driver_id", driverID.String()), zap.Error(err))
		return
	}
	if active > 0 {
		return
	}
	d, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		s.logger.Warn("load driver to release", zap.String("driver_id", driverID.String()), zap.Error(err))
		return
	}
	if d.Status != driver.StatusOnDelivery {
		return
	}
	if err := s.drivers.UpdateStatus(ctx, driverID, driver.StatusAvailable); err != nil {
		s.logger.Warn("release driver", zap.String("driver_id", driverID.String()), zap.Error(err))
	}
}

// Delete deletes an order
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.orders.Delete(ctx, id)
}

func (s *Service) publish(ctx context.Context, o *order.Order) {
	events := o.PullDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish order event",
				zap.String("order_id", o.ID.String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}

func validatePhone(raw string) error {
	if _, err := valueobject.NewPhone(raw); err != nil {
		return ErrInvalidPhoneLength
	}
	return nil
}

// requestHash fingerprints the checkout payload without the key itself
func requestHash(req CheckoutRequest) string {
	req.IdempotencyKey, req.IdempotencyKeyAlt = "", ""
	body, _ := json.Marshal(req)
	return order.HashRequest(body)
}
