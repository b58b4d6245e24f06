package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OfferRepository persists dispatch offers
type OfferRepository interface {
	Save(ctx context.Context, o *Offer) error

	// FindOpen returns the open offer of a driver for an order, or shared.ErrNotFound
	FindOpen(ctx context.Context, orderID, driverID uuid.UUID) (*Offer, error)

	// FindByOrder lists every offer of an order, oldest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]Offer, error)

	// ExcludedDrivers returns drivers that already answered an offer for the order
	ExcludedDrivers(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)

	// CloseOpen sets outcome on every open offer of the order except the
	// given driver's, returning the number closed
	CloseOpen(ctx context.Context, orderID uuid.UUID, exceptDriver uuid.UUID, outcome Outcome, at time.Time) (int64, error)
}

// TelegramMessageRepository persists sent bot messages
type TelegramMessageRepository interface {
	Save(ctx context.Context, m *TelegramMessage) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]TelegramMessage, error)
}
