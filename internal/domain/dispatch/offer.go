package dispatch

import (
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Channel is the medium an offer was sent over
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelSMS      Channel = "sms"
)

// Outcome is how a driver responded to an offer
type Outcome string

const (
	OutcomeOffered    Outcome = "offered"
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRefused    Outcome = "refused"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeSuperseded Outcome = "superseded"
)

// IsFinal reports whether the driver is done with this order
func (o Outcome) IsFinal() bool {
	return o != OutcomeOffered
}

// ErrOfferClosed is returned when responding to an offer that was already answered
var ErrOfferClosed = shared.NewDomainError("OFFER_CLOSED", "This offer is no longer open")

// Offer records that an order was proposed to a driver and how the
// driver answered. Drivers with a final outcome are skipped for that order.
type Offer struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	DriverID    uuid.UUID
	Channel     Channel
	Outcome     Outcome
	OfferedAt   time.Time
	RespondedAt *time.Time
}

// NewOffer creates an open offer
func NewOffer(orderID, driverID uuid.UUID, channel Channel, at time.Time) *Offer {
	return &Offer{
		ID:        uuid.New(),
		OrderID:   orderID,
		DriverID:  driverID,
		Channel:   channel,
		Outcome:   OutcomeOffered,
		OfferedAt: at,
	}
}

// Close records the driver's answer
func (o *Offer) Close(outcome Outcome, at time.Time) error {
	if o.Outcome.IsFinal() {
		return ErrOfferClosed
	}
	o.Outcome = outcome
	o.RespondedAt = &at
	return nil
}

// TelegramMessage remembers a sent bot message so it can be edited later
type TelegramMessage struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	DriverID  uuid.UUID
	ChatID    string
	MessageID int64
	CreatedAt time.Time
}

// NewTelegramMessage creates a record for a sent message
func NewTelegramMessage(orderID, driverID uuid.UUID, chatID string, messageID int64) *TelegramMessage {
	return &TelegramMessage{
		ID:        uuid.New(),
		OrderID:   orderID,
		DriverID:  driverID,
		ChatID:    chatID,
		MessageID: messageID,
		CreatedAt: time.Now(),
	}
}
