package identity

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockAdminRepository struct {
	mock.Mock
}

func (m *MockAdminRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.AdminUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.AdminUser), args.Error(1)
}

func (m *MockAdminRepository) FindByUsername(ctx context.Context, username string) (*identity.AdminUser, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.AdminUser), args.Error(1)
}

func (m *MockAdminRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdminRepository) Save(ctx context.Context, u *identity.AdminUser) error {
	return m.Called(ctx, u).Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByPhone(ctx context.Context, phone string) (*identity.Customer, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Customer), args.Error(1)
}

func (m *MockCustomerRepository) Save(ctx context.Context, c *identity.Customer) error {
	return m.Called(ctx, c).Error(0)
}

type MockOTPRepository struct {
	mock.Mock
}

func (m *MockOTPRepository) FindLatest(ctx context.Context, phone string) (*identity.OTPCode, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.OTPCode), args.Error(1)
}

func (m *MockOTPRepository) Save(ctx context.Context, o *identity.OTPCode) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
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

// capturingSMS records sent messages
type capturingSMS struct {
	to   []string
	text []string
	err  error
}

func (c *capturingSMS) Send(_ context.Context, to, text string) error {
	if c.err != nil {
		return c.err
	}
	c.to = append(c.to, to)
	c.text = append(c.text, text)
	return nil
}

func newJWT() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-that-is-long-enough-32",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "delivery-test",
	}, 10*time.Minute)
}
