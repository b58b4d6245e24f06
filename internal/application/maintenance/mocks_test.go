package maintenance

import (
	"context"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListOpeningHours(ctx context.Context) ([]RawOpeningHours, error) {
	args := m.Called(ctx)
	return args.Get(0).([]RawOpeningHours), args.Error(1)
}

func (m *MockStore) UpdateOpeningHours(ctx context.Context, restaurantID uuid.UUID, value string) error {
	return m.Called(ctx, restaurantID, value).Error(0)
}

func (m *MockStore) ListImageURLs(ctx context.Context) ([]ImageRef, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ImageRef), args.Error(1)
}

func (m *MockStore) UpdateImageURL(ctx context.Context, ref ImageRef, url string) error {
	return m.Called(ctx, ref, url).Error(0)
}

func (m *MockStore) ListRestaurantKeys(ctx context.Context) ([]RestaurantKey, error) {
	args := m.Called(ctx)
	return args.Get(0).([]RestaurantKey), args.Error(1)
}

func (m *MockStore) MergeRestaurants(ctx context.Context, keepID, dropID uuid.UUID) (MergeResult, error) {
	args := m.Called(ctx, keepID, dropID)
	return args.Get(0).(MergeResult), args.Error(1)
}

type MockRestaurantRepository struct {
	mock.Mock
	restaurant.RestaurantRepository
}

func (m *MockRestaurantRepository) FindWithoutLocation(ctx context.Context, limit int) ([]restaurant.Restaurant, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]restaurant.Restaurant), args.Error(1)
}

func (m *MockRestaurantRepository) Save(ctx context.Context, r *restaurant.Restaurant) error {
	return m.Called(ctx, r).Error(0)
}

type MockProductRepository struct {
	mock.Mock
	catalog.ProductRepository
}

func (m *MockProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	return m.Called(ctx, p).Error(0)
}

type MockKeyRepository struct {
	mock.Mock
	order.IdempotencyKeyRepository
}

func (m *MockKeyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockOTPRepository struct {
	mock.Mock
	identity.OTPRepository
}

func (m *MockOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (valueobject.GeoPoint, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(valueobject.GeoPoint), args.Error(1)
}

func (m *MockGeocoder) Reverse(ctx context.Context, p valueobject.GeoPoint) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// memObjects is an in-memory ObjectStore
type memObjects struct {
	base    string
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{base: "https://cdn.example.tn", objects: map[string][]byte{}}
}

func (m *memObjects) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.objects[key] = data
	return m.PublicURL(key), nil
}

func (m *memObjects) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memObjects) PublicURL(key string) string {
	return strings.TrimRight(m.base, "/") + "/" + key
}

type jobMetric struct {
	job                      string
	updated, skipped, failed int
}

type fakeMetrics struct {
	jobs []jobMetric
}

func (f *fakeMetrics) RecordJob(_ context.Context, job string, updated, skipped, failed int) {
	f.jobs = append(f.jobs, jobMetric{job, updated, skipped, failed})
}
