package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AdminUserRepository defines persistence for admin users
type AdminUserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)
	FindByUsername(ctx context.Context, username string) (*AdminUser, error)
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, u *AdminUser) error
}

// CustomerRepository defines persistence for customers and their addresses
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByPhone(ctx context.Context, phone string) (*Customer, error)

	// Save creates or updates a customer and replaces its addresses
	Save(ctx context.Context, c *Customer) error
}

// OTPRepository defines persistence for one-time codes
type OTPRepository interface {
	// FindLatest returns the most recent code for a phone
	FindLatest(ctx context.Context, phone string) (*OTPCode, error)
	Save(ctx context.Context, o *OTPCode) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
