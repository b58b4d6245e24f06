package driver

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DriverRepository defines the interface for driver persistence
type DriverRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	FindByPhone(ctx context.Context, phone string) (*Driver, error)
	FindByTelegramID(ctx context.Context, telegramID string) (*Driver, error)

	// FindAll lists drivers. Supported filter key: "status" (Status).
	FindAll(ctx context.Context, filter shared.Filter) ([]Driver, error)
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// FindDispatchCandidates returns available drivers not in exclude,
	// least recently offered first (never-offered drivers lead), ties by id.
	FindDispatchCandidates(ctx context.Context, exclude []uuid.UUID) ([]Driver, error)

	// MarkOffered stamps last_offered_at
	MarkOffered(ctx context.Context, id uuid.UUID, at time.Time) error

	// UpdateStatus sets the status column directly
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	Save(ctx context.Context, d *Driver) error
	Delete(ctx context.Context, id uuid.UUID) error
}
