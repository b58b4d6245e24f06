package persistence

import (
	"context"

	"github.com/delivery/backend/internal/domain/settings"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSettingsRepository implements settings.Repository using GORM
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns a setting by key
func (r *GormSettingsRepository) Get(ctx context.Context, key string) (*settings.Setting, error) {
	var model models.SettingModel
	if err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// List returns all settings ordered by key
func (r *GormSettingsRepository) List(ctx context.Context) ([]settings.Setting, error) {
	var rows []models.SettingModel
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]settings.Setting, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Upsert inserts a setting or overwrites the existing value
func (r *GormSettingsRepository) Upsert(ctx context.Context, s *settings.Setting) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(models.SettingModelFromDomain(s)).Error
	return translateError(err)
}

// Ensure GormSettingsRepository implements Repository
var _ settings.Repository = (*GormSettingsRepository)(nil)
