package persistence

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOTPRepository implements OTPRepository using GORM
type GormOTPRepository struct {
	db *gorm.DB
}

// NewGormOTPRepository creates a new GormOTPRepository
func NewGormOTPRepository(db *gorm.DB) *GormOTPRepository {
	return &GormOTPRepository{db: db}
}

// FindLatest returns the most recently issued code for a phone
func (r *GormOTPRepository) FindLatest(ctx context.Context, phone string) (*identity.OTPCode, error) {
	var model models.OTPCodeModel
	err := r.db.WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a code (attempt counter, consumption)
func (r *GormOTPRepository) Save(ctx context.Context, o *identity.OTPCode) error {
	return translateError(r.db.WithContext(ctx).Save(models.OTPCodeModelFromDomain(o)).Error)
}

// DeleteExpired purges codes that expired before now
func (r *GormOTPRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.OTPCodeModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormOTPRepository implements OTPRepository
var _ identity.OTPRepository = (*GormOTPRepository)(nil)
