package models

import (
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/google/uuid"
)

// DispatchOfferModel records one offer of an order to a driver
type DispatchOfferModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_dispatch_offers_order_driver,priority:1"`
	DriverID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_dispatch_offers_order_driver,priority:2"`
	Channel     dispatch.Channel `gorm:"type:varchar(20);not null"`
	Outcome     dispatch.Outcome `gorm:"type:varchar(20);not null;default:'offered'"`
	OfferedAt   time.Time        `gorm:"not null"`
	RespondedAt *time.Time
}

// TableName returns the table name for GORM
func (DispatchOfferModel) TableName() string {
	return "dispatch_offers"
}

// ToDomain converts the persistence model to a domain Offer
func (m *DispatchOfferModel) ToDomain() *dispatch.Offer {
	return &dispatch.Offer{
		ID:          m.ID,
		OrderID:     m.OrderID,
		DriverID:    m.DriverID,
		Channel:     m.Channel,
		Outcome:     m.Outcome,
		OfferedAt:   m.OfferedAt,
		RespondedAt: m.RespondedAt,
	}
}

// DispatchOfferModelFromDomain creates a persistence model from a domain Offer
func DispatchOfferModelFromDomain(o *dispatch.Offer) *DispatchOfferModel {
	return &DispatchOfferModel{
		ID:          o.ID,
		OrderID:     o.OrderID,
		DriverID:    o.DriverID,
		Channel:     o.Channel,
		Outcome:     o.Outcome,
		OfferedAt:   o.OfferedAt,
		RespondedAt: o.RespondedAt,
	}
}

// TelegramMessageModel remembers a bot message so it can be edited later
type TelegramMessageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	DriverID  uuid.UUID `gorm:"type:uuid;not null"`
	ChatID    string    `gorm:"type:varchar(50);not null"`
	MessageID int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TelegramMessageModel) TableName() string {
	return "telegram_messages"
}

// ToDomain converts the persistence model to a domain TelegramMessage
func (m *TelegramMessageModel) ToDomain() *dispatch.TelegramMessage {
	return &dispatch.TelegramMessage{
		ID:        m.ID,
		OrderID:   m.OrderID,
		DriverID:  m.DriverID,
		ChatID:    m.ChatID,
		MessageID: m.MessageID,
		CreatedAt: m.CreatedAt,
	}
}

// TelegramMessageModelFromDomain creates a persistence model from a domain TelegramMessage
func TelegramMessageModelFromDomain(t *dispatch.TelegramMessage) *TelegramMessageModel {
	return &TelegramMessageModel{
		ID:        t.ID,
		OrderID:   t.OrderID,
		DriverID:  t.DriverID,
		ChatID:    t.ChatID,
		MessageID: t.MessageID,
		CreatedAt: t.CreatedAt,
	}
}
