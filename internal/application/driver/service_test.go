package driver

import (
	"context"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDriverRepository is a mock implementation of DriverRepository
type MockDriverRepository struct {
	mock.Mock
}

func (m *MockDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindByTelegramID(ctx context.Context, telegramID string) (*driver.Driver, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) FindAll(ctx context.Context, filter shared.Filter) ([]driver.Driver, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDriverRepository) FindDispatchCandidates(ctx context.Context, exclude []uuid.UUID) ([]driver.Driver, error) {
	args := m.Called(ctx, exclude)
	return args.Get(0).([]driver.Driver), args.Error(1)
}

func (m *MockDriverRepository) MarkOffered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status driver.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockDriverRepository) Save(ctx context.Context, d *driver.Driver) error {
	return m.Called(ctx, d).Error(0)
}

func (m *MockDriverRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func newJWT() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-that-is-long-enough-32",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "delivery-test",
	}, 10*time.Minute)
}

func newDriver(t *testing.T) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver("Sami", "22123456", "secret123")
	require.NoError(t, err)
	return d
}

func TestService_Create(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*driver.Driver")).Return(nil)

	resp, err := svc.Create(context.Background(), CreateDriverRequest{
		Name:       "Sami",
		Phone:      "+216 22 123 456",
		Password:   "secret123",
		TelegramID: "555001",
	})
	require.NoError(t, err)
	assert.Equal(t, "22123456", resp.Phone)
	assert.Equal(t, "offline", resp.Status)
	assert.True(t, resp.HasTelegram)
}

func TestService_Create_ShortPassword(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)

	_, err := svc.Create(context.Background(), CreateDriverRequest{Name: "Sami", Phone: "22123456", Password: "123"})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Login(t *testing.T) {
	repo := new(MockDriverRepository)
	jwtSvc := newJWT()
	svc := NewService(repo, jwtSvc, nil, nil)
	d := newDriver(t)
	repo.On("FindByPhone", mock.Anything, "22123456").Return(d, nil)

	resp, err := svc.Login(context.Background(), LoginRequest{Phone: "21622123456", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, d.ID, resp.Driver.ID)

	claims, err := jwtSvc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleDriver, claims.Role)
	assert.Equal(t, d.ID.String(), claims.UserID)

	_, err = svc.Login(context.Background(), LoginRequest{Phone: "22123456", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Login_UnknownPhone(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	repo.On("FindByPhone", mock.Anything, "99000000").Return(nil, shared.ErrNotFound)

	_, err := svc.Login(context.Background(), LoginRequest{Phone: "99000000", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Phone: "123", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_ExchangeLoginToken_SingleUse(t *testing.T) {
	repo := new(MockDriverRepository)
	jwtSvc := newJWT()
	svc := NewService(repo, jwtSvc, auth.NewInMemoryTokenBlacklist(), nil)
	d := newDriver(t)
	repo.On("FindByID", mock.Anything, d.ID).Return(d, nil)

	token, err := jwtSvc.GenerateDriverLoginToken(d.ID, d.Name)
	require.NoError(t, err)

	resp, err := svc.ExchangeLoginToken(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)

	_, err = svc.ExchangeLoginToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrLoginTokenUsed)
}

func TestService_ExchangeLoginToken_RejectsAccessToken(t *testing.T) {
	jwtSvc := newJWT()
	svc := NewService(new(MockDriverRepository), jwtSvc, nil, nil)
	pair, err := jwtSvc.GenerateTokenPair(auth.Subject{UserID: uuid.New(), Role: auth.RoleDriver})
	require.NoError(t, err)

	_, err = svc.ExchangeLoginToken(context.Background(), pair.AccessToken)
	assert.Error(t, err)
}

func TestService_Delete_RevokesTokens(t *testing.T) {
	repo := new(MockDriverRepository)
	blacklist := auth.NewInMemoryTokenBlacklist()
	svc := NewService(repo, newJWT(), blacklist, nil)
	d := newDriver(t)
	repo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	repo.On("Delete", mock.Anything, d.ID).Return(nil)

	issuedBefore := time.Now().Add(-time.Minute)
	require.NoError(t, svc.Delete(context.Background(), d.ID))

	revoked, err := blacklist.SubjectRevoked(context.Background(), d.ID.String(), issuedBefore)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestService_SetStatus(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	d := newDriver(t)
	repo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	repo.On("Save", mock.Anything, d).Return(nil)

	resp, err := svc.SetStatus(context.Background(), d.ID, "available")
	require.NoError(t, err)
	assert.Equal(t, "available", resp.Status)

	_, err = svc.SetStatus(context.Background(), d.ID, "on_delivery")
	require.NoError(t, err)

	// a driver on delivery cannot go offline
	_, err = svc.SetStatus(context.Background(), d.ID, "offline")
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "INVALID_STATE", de.Code)
}

func TestService_LinkTelegram(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	d := newDriver(t)
	repo.On("FindByPhone", mock.Anything, "22123456").Return(d, nil)
	repo.On("Save", mock.Anything, d).Return(nil)

	resp, err := svc.LinkTelegram(context.Background(), "+216 22 123 456", "777")
	require.NoError(t, err)
	assert.Equal(t, "777", resp.TelegramID)
}

func TestService_LinkTelegram_RefusesOtherChat(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	d := newDriver(t)
	require.NoError(t, d.LinkTelegram("111"))
	repo.On("FindByPhone", mock.Anything, "22123456").Return(d, nil)

	_, err := svc.LinkTelegram(context.Background(), "22123456", "999")
	assert.ErrorIs(t, err, driver.ErrTelegramAlreadyLinked)
	assert.Equal(t, "111", d.TelegramID)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestService_Update_AdminMovesTelegramChat(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	d := newDriver(t)
	require.NoError(t, d.LinkTelegram("111"))
	repo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	repo.On("Save", mock.Anything, d).Return(nil)

	resp, err := svc.Update(context.Background(), d.ID, UpdateDriverRequest{Name: d.Name, Phone: d.Phone, TelegramID: "999"})
	require.NoError(t, err)
	assert.Equal(t, "999", resp.TelegramID)
}

func TestService_List(t *testing.T) {
	repo := new(MockDriverRepository)
	svc := NewService(repo, newJWT(), nil, nil)
	repo.On("FindAll", mock.Anything, mock.MatchedBy(func(f shared.Filter) bool {
		return f.Filters["status"] == driver.StatusAvailable && f.OrderBy == "name" && f.OrderDir == "asc"
	})).Return([]driver.Driver{}, nil)
	repo.On("Count", mock.Anything, mock.Anything).Return(int64(0), nil)

	items, total, err := svc.List(context.Background(), DriverListFilter{Status: "available"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}
