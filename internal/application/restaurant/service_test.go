package restaurant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRestaurantRepository struct {
	mock.Mock
}

func (m *MockRestaurantRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.Restaurant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*restaurant.Restaurant), args.Error(1)
}

func (m *MockRestaurantRepository) FindByPhone(ctx context.Context, phone string) (*restaurant.Restaurant, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*restaurant.Restaurant), args.Error(1)
}

func (m *MockRestaurantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.Restaurant, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]restaurant.Restaurant), args.Error(1)
}

func (m *MockRestaurantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRestaurantRepository) FindWithoutLocation(ctx context.Context, limit int) ([]restaurant.Restaurant, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]restaurant.Restaurant), args.Error(1)
}

func (m *MockRestaurantRepository) Save(ctx context.Context, r *restaurant.Restaurant) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockRestaurantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (valueobject.GeoPoint, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(valueobject.GeoPoint), args.Error(1)
}

func (m *MockGeocoder) Reverse(ctx context.Context, point valueobject.GeoPoint) (string, error) {
	args := m.Called(ctx, point)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	events []shared.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return p.err
}

func validRequest() RestaurantRequest {
	minOrder := decimal.NewFromInt(15)
	return RestaurantRequest{
		Name:         "Pizza Roma",
		Phone:        "+216 71 234 567",
		Address:      "12 Rue de Marseille, Tunis",
		Categories:   []string{"pizza", "Pizza", " italian "},
		DeliveryTime: "30-45 min",
		MinOrder:     &minOrder,
		OpeningHours: &OpeningHoursInput{Open: "11:00", Close: "23:30", ClosedDay: "lundi"},
	}
}

func existing(t *testing.T) *restaurant.Restaurant {
	t.Helper()
	r, err := restaurant.NewRestaurant("Chez Ali", "71234567", "Avenue Habib Bourguiba")
	require.NoError(t, err)
	r.ClearDomainEvents()
	return r
}

func TestService_Create(t *testing.T) {
	repo := new(MockRestaurantRepository)
	geo := new(MockGeocoder)
	pub := &recordingPublisher{}
	svc := NewService(repo, geo, nil)
	svc.SetEventPublisher(pub)

	point := valueobject.GeoPoint{Latitude: 36.8, Longitude: 10.18}
	geo.On("Geocode", mock.Anything, "12 Rue de Marseille, Tunis").Return(point, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*restaurant.Restaurant")).Return(nil)

	resp, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "71234567", resp.Phone)
	assert.Equal(t, []string{"pizza", "italian"}, resp.Categories)
	assert.True(t, resp.IsOpen)
	require.NotNil(t, resp.OpeningHours)
	assert.Equal(t, "Monday", resp.OpeningHours.ClosedDay)
	require.NotNil(t, resp.Latitude)
	assert.InDelta(t, 36.8, *resp.Latitude, 1e-9)
	assert.True(t, resp.MinOrder.Equal(decimal.NewFromInt(15)))

	require.Len(t, pub.events, 1)
	assert.Equal(t, restaurant.EventTypeRestaurantCreated, pub.events[0].EventType())
	repo.AssertExpectations(t)
	geo.AssertExpectations(t)
}

func TestService_Create_GeocodeFailureIsNotFatal(t *testing.T) {
	repo := new(MockRestaurantRepository)
	geo := new(MockGeocoder)
	svc := NewService(repo, geo, nil)

	geo.On("Geocode", mock.Anything, mock.Anything).Return(valueobject.GeoPoint{}, shared.ErrGeocoderUnavailable)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	resp, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Nil(t, resp.Latitude)
	assert.Nil(t, resp.Longitude)
}

func TestService_Create_WithCoordinatesSkipsGeocoder(t *testing.T) {
	repo := new(MockRestaurantRepository)
	geo := new(MockGeocoder)
	svc := NewService(repo, geo, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	req := validRequest()
	lat, lon := 36.85, 10.2
	req.Latitude, req.Longitude = &lat, &lon

	resp, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 10.2, *resp.Longitude, 1e-9)
	geo.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RestaurantRequest)
		code   string
	}{
		{"bad phone", func(r *RestaurantRequest) { r.Phone = "1234" }, "INVALID_PHONE"},
		{"negative min order", func(r *RestaurantRequest) {
			v := decimal.NewFromInt(-1)
			r.MinOrder = &v
		}, "INVALID_MIN_ORDER"},
		{"rating above five", func(r *RestaurantRequest) {
			v := decimal.NewFromFloat(5.5)
			r.Rating = &v
		}, "INVALID_RATING"},
		{"bad hours", func(r *RestaurantRequest) {
			r.OpeningHours = &OpeningHoursInput{Open: "25:00", Close: "23:00"}
		}, "INVALID_OPENING_HOURS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRestaurantRepository)
			svc := NewService(repo, nil, nil)
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), req)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tt.code, de.Code)
			repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestService_Create_DuplicatePhone(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)

	_, err := svc.Create(context.Background(), validRequest())
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestService_ToggleOpen(t *testing.T) {
	repo := new(MockRestaurantRepository)
	pub := &recordingPublisher{}
	svc := NewService(repo, nil, nil)
	svc.SetEventPublisher(pub)

	r := existing(t)
	repo.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	repo.On("Save", mock.Anything, r).Return(nil)

	resp, err := svc.ToggleOpen(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, resp.IsOpen)
	assert.False(t, resp.AcceptingOrders)

	resp, err = svc.ToggleOpen(context.Background(), r.ID)
	require.NoError(t, err)
	assert.True(t, resp.IsOpen)

	require.Len(t, pub.events, 2)
	assert.Equal(t, restaurant.EventTypeRestaurantOpenToggled, pub.events[0].EventType())
}

func TestService_ToggleOpen_NotFound(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)
	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := svc.ToggleOpen(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_Update_AddressChangeRegeocodes(t *testing.T) {
	repo := new(MockRestaurantRepository)
	geo := new(MockGeocoder)
	svc := NewService(repo, geo, nil)

	r := existing(t)
	r.SetLocation(&valueobject.GeoPoint{Latitude: 1, Longitude: 1})
	repo.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	repo.On("Save", mock.Anything, r).Return(nil)
	geo.On("Geocode", mock.Anything, "12 Rue de Marseille, Tunis").
		Return(valueobject.GeoPoint{Latitude: 36.8, Longitude: 10.18}, nil)

	resp, err := svc.Update(context.Background(), r.ID, validRequest())
	require.NoError(t, err)
	assert.InDelta(t, 36.8, *resp.Latitude, 1e-9)
	assert.Equal(t, "Pizza Roma", resp.Name)
}

func TestService_List(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }

	open := true
	r := existing(t)
	repo.On("FindAll", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["category"] == "pizza" && f.Filters["is_open"] == true &&
			f.OrderBy == "name" && f.OrderDir == "asc" && f.Page == 1 && f.PageSize == 20
	})).Return([]restaurant.Restaurant{*r}, nil)
	repo.On("Count", mock.Anything, mock.Anything).Return(int64(1), nil)

	items, total, err := svc.List(context.Background(), ListFilter{Category: "pizza", IsOpen: &open})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.True(t, items[0].AcceptingOrders)
	assert.Equal(t, []string{}, items[0].Categories)
}

func TestService_SetCoordinates(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)
	r := existing(t)
	repo.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	repo.On("Save", mock.Anything, r).Return(nil)

	resp, err := svc.SetCoordinates(context.Background(), r.ID, CoordinatesRequest{Latitude: 36.4, Longitude: 10.6})
	require.NoError(t, err)
	assert.InDelta(t, 10.6, *resp.Longitude, 1e-9)

	_, err = svc.SetCoordinates(context.Background(), r.ID, CoordinatesRequest{Latitude: 120, Longitude: 10})
	assert.ErrorIs(t, err, errInvalidCoordinates)
}

func TestService_Delete(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)
	r := existing(t)
	repo.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	repo.On("Delete", mock.Anything, r.ID).Return(nil)

	require.NoError(t, svc.Delete(context.Background(), r.ID))
	repo.AssertExpectations(t)
}

func TestService_Update_WithoutOpeningHoursKeepsStoredValue(t *testing.T) {
	repo := new(MockRestaurantRepository)
	svc := NewService(repo, nil, nil)

	r := existing(t)
	r.RestoreOpeningHours("tous les jours sauf lundi")
	repo.On("FindByID", mock.Anything, r.ID).Return(r, nil)
	repo.On("Save", mock.Anything, r).Return(nil)

	req := validRequest()
	req.OpeningHours = nil
	lat, lng := 36.8, 10.18
	req.Latitude, req.Longitude = &lat, &lng
	_, err := svc.Update(context.Background(), r.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "tous les jours sauf lundi", r.StoredOpeningHours())
}
