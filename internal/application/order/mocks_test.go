package order

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, orderID, driverID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOrderRepository) ReassignRestaurant(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	args := m.Called(ctx, fromID, toID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountActiveByDriver(ctx context.Context, driverID uuid.UUID) (int64, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).(int64), args.Error(1)
}

type MockKeyRepository struct {
	mock.Mock
}

func (m *MockKeyRepository) Find(ctx context.Context, key string) (*order.IdempotencyKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.IdempotencyKey), args.Error(1)
}

func (m *MockKeyRepository) Save(ctx context.Context, k *order.IdempotencyKey) error {
	return m.Called(ctx, k).Error(0)
}

func (m *MockKeyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockRestaurantRepository struct {
	mock.Mock
	restaurant.RestaurantRepository
}

func (m *MockRestaurantRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.Restaurant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*restaurant.Restaurant), args.Error(1)
}

type MockProductRepository struct {
	mock.Mock
	catalog.ProductRepository
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

type MockDriverRepository struct {
	mock.Mock
	driver.DriverRepository
}

func (m *MockDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status driver.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, req order.CreatePaymentRequest) (*order.CreatePaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.CreatePaymentResponse), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, paymentID string) (*order.VerifyPaymentResponse, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.VerifyPaymentResponse), args.Error(1)
}

type fixedFee decimal.Decimal

func (f fixedFee) DeliveryFee(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

type recordedPayment struct{ method, status string }

type fakeMetrics struct {
	created  []int64
	statuses []string
	payments []recordedPayment
}

func (f *fakeMetrics) RecordOrderCreated(_ context.Context, _, _ string, amountMillimes int64) {
	f.created = append(f.created, amountMillimes)
}

func (f *fakeMetrics) RecordStatusChange(_ context.Context, status string) {
	f.statuses = append(f.statuses, status)
}

func (f *fakeMetrics) RecordPayment(_ context.Context, method, status string) {
	f.payments = append(f.payments, recordedPayment{method, status})
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}
