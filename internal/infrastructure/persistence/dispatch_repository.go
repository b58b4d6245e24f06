package persistence

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOfferRepository implements OfferRepository using GORM
type GormOfferRepository struct {
	db *gorm.DB
}

// NewGormOfferRepository creates a new GormOfferRepository
func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// Save creates or updates an offer
func (r *GormOfferRepository) Save(ctx context.Context, o *dispatch.Offer) error {
	return translateError(r.db.WithContext(ctx).Save(models.DispatchOfferModelFromDomain(o)).Error)
}

// FindOpen returns the newest open offer of a driver for an order
func (r *GormOfferRepository) FindOpen(ctx context.Context, orderID, driverID uuid.UUID) (*dispatch.Offer, error) {
	var model models.DispatchOfferModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND driver_id = ? AND outcome = ?", orderID, driverID, dispatch.OutcomeOffered).
		Order("offered_at DESC").
		First(&model).Error
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByOrder lists every offer of an order, oldest first
func (r *GormOfferRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]dispatch.Offer, error) {
	var rows []models.DispatchOfferModel
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("offered_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]dispatch.Offer, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// ExcludedDrivers returns drivers whose offer for the order has a final outcome
func (r *GormOfferRepository) ExcludedDrivers(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.DispatchOfferModel{}).
		Distinct("driver_id").
		Where("order_id = ? AND outcome <> ?", orderID, dispatch.OutcomeOffered).
		Pluck("driver_id", &ids).Error
	return ids, err
}

// CloseOpen closes the open offers of an order other than exceptDriver's.
// Pass uuid.Nil to close all of them.
func (r *GormOfferRepository) CloseOpen(ctx context.Context, orderID uuid.UUID, exceptDriver uuid.UUID, outcome dispatch.Outcome, at time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.DispatchOfferModel{}).
		Where("order_id = ? AND outcome = ?", orderID, dispatch.OutcomeOffered)
	if exceptDriver != uuid.Nil {
		query = query.Where("driver_id <> ?", exceptDriver)
	}
	result := query.Updates(map[string]any{"outcome": outcome, "responded_at": at})
	return result.RowsAffected, result.Error
}

// Ensure GormOfferRepository implements OfferRepository
var _ dispatch.OfferRepository = (*GormOfferRepository)(nil)

// GormTelegramMessageRepository implements TelegramMessageRepository using GORM
type GormTelegramMessageRepository struct {
	db *gorm.DB
}

// NewGormTelegramMessageRepository creates a new GormTelegramMessageRepository
func NewGormTelegramMessageRepository(db *gorm.DB) *GormTelegramMessageRepository {
	return &GormTelegramMessageRepository{db: db}
}

// Save stores a sent message
func (r *GormTelegramMessageRepository) Save(ctx context.Context, m *dispatch.TelegramMessage) error {
	return translateError(r.db.WithContext(ctx).Create(models.TelegramMessageModelFromDomain(m)).Error)
}

// FindByOrder lists the messages sent about an order
func (r *GormTelegramMessageRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]dispatch.TelegramMessage, error) {
	var rows []models.TelegramMessageModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]dispatch.TelegramMessage, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Ensure GormTelegramMessageRepository implements TelegramMessageRepository
var _ dispatch.TelegramMessageRepository = (*GormTelegramMessageRepository)(nil)
