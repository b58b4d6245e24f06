package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orders      *MockOrderRepository
	keys        *MockKeyRepository
	restaurants *MockRestaurantRepository
	products    *MockProductRepository
	drivers     *MockDriverRepository
	gateway     *MockGateway
	metrics     *fakeMetrics
	pub         *recordingPublisher
	svc         *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		orders:      new(MockOrderRepository),
		keys:        new(MockKeyRepository),
		restaurants: new(MockRestaurantRepository),
		products:    new(MockProductRepository),
		drivers:     new(MockDriverRepository),
		gateway:     new(MockGateway),
		metrics:     &fakeMetrics{},
		pub:         &recordingPublisher{},
	}
	opts = append([]Option{
		WithPaymentGateway(f.gateway),
		WithMetrics(f.metrics),
		WithFeeSource(fixedFee(decimal.RequireFromString("2.500"))),
	}, opts...)
	f.svc = NewService(f.orders, f.keys, f.restaurants, f.products, f.drivers, opts...)
	f.svc.SetEventPublisher(f.pub)
	return f
}

func openRestaurant(t *testing.T, minOrder string) *restaurant.Restaurant {
	t.Helper()
	r, err := restaurant.NewRestaurant("Pizza Roma", "71234567", "Rue de Marseille, Tunis")
	require.NoError(t, err)
	require.NoError(t, r.SetMinOrder(decimal.RequireFromString(minOrder)))
	r.ClearDomainEvents()
	return r
}

func margherita(t *testing.T, restaurantID uuid.UUID) catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(restaurantID, "Margherita", catalog.ProductTypePizza, []catalog.ProductPrice{
		{Size: catalog.SizeSmall, Price: decimal.RequireFromString("12.000")},
		{Size: catalog.SizeLarge, Price: decimal.RequireFromString("20.000")},
	})
	require.NoError(t, err)
	p.ClearDomainEvents()
	return *p
}

func cart(restaurantID, productID uuid.UUID) CheckoutRequest {
	return CheckoutRequest{
		RestaurantID:    restaurantID,
		CustomerName:    "Amine",
		CustomerPhone:   "+216 98 123 456",
		CustomerAddress: "12 rue de Rome, Tunis",
		Items: []CheckoutItem{
			{ProductID: productID, Size: "large", Quantity: 2},
			{ProductID: productID, Size: "small", Quantity: 1},
		},
	}
}

func placedOrder(t *testing.T, restaurantID uuid.UUID, method order.PaymentMethod) *order.Order {
	t.Helper()
	o, err := order.NewOrder(restaurantID, order.Customer{
		Name:    "Amine",
		Phone:   "98123456",
		Address: "12 rue de Rome, Tunis",
	}, method)
	require.NoError(t, err)
	p := margherita(t, restaurantID)
	require.NoError(t, o.AddItem(&p, catalog.SizeLarge, 1))
	require.NoError(t, o.Place(decimal.Zero))
	o.ClearDomainEvents()
	return o
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected domain error, got %v", err)
	return de.Code
}

func TestCheckout_PricesFromCatalog(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "10")
	p := margherita(t, r.ID)

	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	f.products.On("FindByIDs", mock.Anything, []uuid.UUID{p.ID, p.ID}).Return([]catalog.Product{p}, nil)
	f.orders.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)

	resp, replayed, err := f.svc.Checkout(context.Background(), cart(r.ID, p.ID))
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "cash", resp.PaymentMethod)
	assert.Equal(t, "unpaid", resp.PaymentStatus)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Subtotal.Equal(decimal.RequireFromString("52")), resp.Subtotal.String())
	assert.True(t, resp.DeliveryFee.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, resp.TotalPrice.Equal(decimal.RequireFromString("54.5")))

	assert.Equal(t, []string{order.EventTypeOrderCreated}, f.pub.types())
	assert.Equal(t, []int64{54500}, f.metrics.created)
	f.keys.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestCheckout_InvalidPhone(t *testing.T) {
	f := newFixture()
	req := cart(uuid.New(), uuid.New())
	req.CustomerPhone = "12345"

	_, _, err := f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPhoneLength)
	assert.Equal(t, "VALIDATION_ERROR", codeOf(t, err))
	f.restaurants.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCheckout_RestaurantClosed(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "0")
	r.ToggleOpen()
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)

	_, _, err := f.svc.Checkout(context.Background(), cart(r.ID, uuid.New()))
	assert.ErrorIs(t, err, order.ErrRestaurantClosed)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCheckout_MinOrderNotReached(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "100")
	p := margherita(t, r.ID)
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{p}, nil)

	_, _, err := f.svc.Checkout(context.Background(), cart(r.ID, p.ID))
	assert.Equal(t, "MIN_ORDER_NOT_REACHED", codeOf(t, err))
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCheckout_UnknownOrForeignProduct(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "0")
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)

	missing := uuid.New()
	f.products.On("FindByIDs", mock.Anything, []uuid.UUID{missing, missing}).Return([]catalog.Product{}, nil).Once()
	_, _, err := f.svc.Checkout(context.Background(), cart(r.ID, missing))
	assert.Equal(t, "PRODUCT_NOT_FOUND", codeOf(t, err))

	foreign := margherita(t, uuid.New())
	f.products.On("FindByIDs", mock.Anything, []uuid.UUID{foreign.ID, foreign.ID}).Return([]catalog.Product{foreign}, nil).Once()
	_, _, err = f.svc.Checkout(context.Background(), cart(r.ID, foreign.ID))
	assert.Equal(t, "PRODUCT_NOT_IN_RESTAURANT", codeOf(t, err))
}

func TestCheckout_ReplaysSameKey(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "0")
	existing := placedOrder(t, r.ID, order.PaymentMethodCash)

	req := cart(r.ID, uuid.New())
	req.IdempotencyKey = "cart-42"
	key, err := order.NewIdempotencyKey("cart-42", existing.ID, requestHash(req), time.Hour)
	require.NoError(t, err)

	f.keys.On("Find", mock.Anything, "cart-42").Return(key, nil)
	f.orders.On("FindByID", mock.Anything, existing.ID).Return(existing, nil)

	resp, replayed, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, existing.ID, resp.ID)
	f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Empty(t, f.pub.events)
}

func TestCheckout_ReplaysKeyFromBody(t *testing.T) {
	r := openRestaurant(t, "0")
	existing := placedOrder(t, r.ID, order.PaymentMethodCash)
	productID := uuid.New()

	for _, field := range []string{"idempotencyKey", "idempotency_key"} {
		t.Run(field, func(t *testing.T) {
			f := newFixture()
			body, err := json.Marshal(cart(r.ID, productID))
			require.NoError(t, err)
			var fields map[string]any
			require.NoError(t, json.Unmarshal(body, &fields))
			fields[field] = "cart-42"
			body, err = json.Marshal(fields)
			require.NoError(t, err)

			var req CheckoutRequest
			require.NoError(t, json.Unmarshal(body, &req))

			key, err := order.NewIdempotencyKey("cart-42", existing.ID, requestHash(cart(r.ID, productID)), time.Hour)
			require.NoError(t, err)
			f.keys.On("Find", mock.Anything, "cart-42").Return(key, nil)
			f.orders.On("FindByID", mock.Anything, existing.ID).Return(existing, nil)

			resp, replayed, err := f.svc.Checkout(context.Background(), req)
			require.NoError(t, err)
			assert.True(t, replayed)
			assert.Equal(t, existing.ID, resp.ID)
			f.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestCheckoutRequest_KeyPrecedence(t *testing.T) {
	req := CheckoutRequest{IdempotencyKeyAlt: " snake "}
	assert.Equal(t, "snake", req.idempotencyKey())
	req.IdempotencyKey = "camel"
	assert.Equal(t, "camel", req.idempotencyKey())
}

func TestCheckout_KeyReusedWithDifferentPayload(t *testing.T) {
	f := newFixture()
	key, err := order.NewIdempotencyKey("cart-42", uuid.New(), "other-hash", time.Hour)
	require.NoError(t, err)
	f.keys.On("Find", mock.Anything, "cart-42").Return(key, nil)

	req := cart(uuid.New(), uuid.New())
	req.IdempotencyKey = "cart-42"
	_, _, err = f.svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, order.ErrIdempotencyKeyReused)
}

func TestCheckout_ExpiredKeyCreatesNewOrder(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "0")
	p := margherita(t, r.ID)

	req := cart(r.ID, p.ID)
	req.IdempotencyKey = "cart-42"
	expired, err := order.NewIdempotencyKey("cart-42", uuid.New(), requestHash(req), -time.Minute)
	require.NoError(t, err)

	f.keys.On("Find", mock.Anything, "cart-42").Return(expired, nil)
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{p}, nil)
	f.orders.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.keys.On("Save", mock.Anything, mock.MatchedBy(func(k *order.IdempotencyKey) bool {
		return k.Key == "cart-42" && k.RequestHash == requestHash(req)
	})).Return(nil)

	_, replayed, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, replayed)
	f.keys.AssertExpectations(t)
}

func TestCheckout_ConcurrentKeyReturnsWinner(t *testing.T) {
	f := newFixture()
	r := openRestaurant(t, "0")
	p := margherita(t, r.ID)
	winner := placedOrder(t, r.ID, order.PaymentMethodCash)

	req := cart(r.ID, p.ID)
	req.IdempotencyKey = "cart-42"
	stored, err := order.NewIdempotencyKey("cart-42", winner.ID, requestHash(req), time.Hour)
	require.NoError(t, err)

	f.keys.On("Find", mock.Anything, "cart-42").Return(nil, shared.ErrNotFound).Once()
	f.keys.On("Find", mock.Anything, "cart-42").Return(stored, nil).Once()
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	f.products.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{p}, nil)

	var loserID uuid.UUID
	f.orders.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		loserID = args.Get(1).(*order.Order).ID
	}).Return(nil)
	f.keys.On("Save", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
	f.orders.On("Delete", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("FindByID", mock.Anything, winner.ID).Return(winner, nil)

	resp, replayed, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, winner.ID, resp.ID)
	f.orders.AssertCalled(t, "Delete", mock.Anything, loserID)
	assert.Empty(t, f.pub.events)
	assert.Empty(t, f.metrics.created)
}

func TestCheckout_OversizedKey(t *testing.T) {
	f := newFixture()
	req := cart(uuid.New(), uuid.New())
	req.IdempotencyKey = strings.Repeat("x", 129)

	_, _, err := f.svc.Checkout(context.Background(), req)
	assert.Equal(t, "INVALID_IDEMPOTENCY_KEY", codeOf(t, err))
}

func TestCheckout_OpeningHoursUseLocation(t *testing.T) {
	tunis := time.FixedZone("CET", 3600)
	f := newFixture(WithLocation(tunis))
	// 22:30 UTC is 23:30 in Tunis, after closing
	at := time.Date(2026, 10, 14, 22, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return at.In(tunis) }

	r := openRestaurant(t, "0")
	hours, err := restaurant.NewOpeningHours("11:00", "23:00", "")
	require.NoError(t, err)
	r.SetOpeningHours(hours)
	f.restaurants.On("FindByID", mock.Anything, r.ID).Return(r, nil)

	_, _, err = f.svc.Checkout(context.Background(), cart(r.ID, uuid.New()))
	assert.ErrorIs(t, err, order.ErrRestaurantClosed)
}

func TestUpdateStatus_DeliveredReleasesDriver(t *testing.T) {
	f := newFixture()
	o := placedOrder(t, uuid.New(), order.PaymentMethodCash)
	d := &driver.Driver{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              "Sami",
		Phone:             "22123456",
		Status:            driver.StatusOnDelivery,
	}
	require.NoError(t, o.AssignDriver(d.ID, time.Now()))
	for _, s := range []order.Status{order.StatusPreparing, order.StatusReady, order.StatusDelivery} {
		require.NoError(t, o.TransitionTo(s))
	}
	o.ClearDomainEvents()

	f.orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	f.orders.On("SaveWithLock", mock.Anything, o).Return(nil)
	f.orders.On("CountActiveByDriver", mock.Anything, d.ID).Return(int64(0), nil)
	f.drivers.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.drivers.On("UpdateStatus", mock.Anything, d.ID, driver.StatusAvailable).Return(nil)

	resp, err := f.svc.UpdateStatus(context.Background(), o.ID, "delivered")
	require.NoError(t, err)
	assert.Equal(t, "delivered", resp.Status)
	assert.NotNil(t, resp.DeliveredAt)
	assert.Equal(t, []string{"delivered"}, f.metrics.statuses)
	assert.Equal(t, []string{order.EventTypeOrderStatusChanged}, f.pub.types())
	f.drivers.AssertExpectations(t)
}

func TestUpdateStatus_DriverWithOtherOrdersStaysBusy(t *testing.T) {
	f := newFixture()
	o := placedOrder(t, uuid.New(), order.PaymentMethodCash)
	driverID := uuid.New()
	require.NoError(t, o.AssignDriver(driverID, time.Now()))
	o.ClearDomainEvents()

	f.orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	f.orders.On("SaveWithLock", mock.Anything, o).Return(nil)
	f.orders.On("CountActiveByDriver", mock.Anything, driverID).Return(int64(1), nil)

	_, err := f.svc.Reject(context.Background(), o.ID, "  out of dough ")
	require.NoError(t, err)
	assert.Equal(t, "out of dough", o.RejectReason)
	f.drivers.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	f := newFixture()
	o := placedOrder(t, uuid.New(), order.PaymentMethodCash)
	f.orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)

	_, err := f.svc.UpdateStatus(context.Background(), o.ID, "delivered")
	assert.Equal(t, "INVALID_STATE", codeOf(t, err))

	_, err = f.svc.UpdateStatus(context.Background(), o.ID, "cooking")
	assert.Equal(t, "INVALID_STATUS", codeOf(t, err))
	f.orders.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestUpdateStatusAsDriver_Ownership(t *testing.T) {
	f := newFixture()
	o := placedOrder(t, uuid.New(), order.PaymentMethodCash)
	owner := uuid.New()
	require.NoError(t, o.AssignDriver(owner, time.Now()))
	o.ClearDomainEvents()

	f.orders.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	f.orders.On("SaveWithLock", mock.Anything, o).Return(nil)

	_, err := f.svc.UpdateStatusAsDriver(context.Background(), o.ID, uuid.New(), "preparing")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	resp, err := f.svc.UpdateStatusAsDriver(context.Background(), o.ID, owner, "preparing")
	require.NoError(t, err)
	assert.Equal(t, "preparing", resp.Status)
}

func TestList_Filters(t *testing.T) {
	f := newFixture()
	restaurantID := uuid.New()
	to := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	f.orders.On("FindAll", mock.Anything, mock.MatchedBy(func(fl shared.Filter) bool {
		return fl.Filters["status"] == order.StatusPending &&
			fl.Filters["restaurant_id"] == restaurantID &&
			fl.Filters["customer_phone"] == "98123456" &&
			fl.Filters["to"] == to.AddDate(0, 0, 1)
	})).Return([]order.Order{}, nil)
	f.orders.On("Count", mock.Anything, mock.Anything).Return(int64(0), nil)

	_, total, err := f.svc.List(context.Background(), OrderListFilter{
		Status:        "pending",
		RestaurantID:  &restaurantID,
		CustomerPhone: "+21698123456",
		To:            &to,
	})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.svc.List(context.Background(), OrderListFilter{Status: "lost"})
	assert.Equal(t, "INVALID_STATUS", codeOf(t, err))
}
