package persistence

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDriverRepository implements DriverRepository using GORM
type GormDriverRepository struct {
	db *gorm.DB
}

// NewGormDriverRepository creates a new GormDriverRepository
func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

// FindByID finds a driver by its ID
func (r *GormDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByPhone finds a driver by normalized phone
func (r *GormDriverRepository) FindByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	return r.findOne(ctx, "phone = ?", phone)
}

// FindByTelegramID finds the driver linked to a Telegram chat
func (r *GormDriverRepository) FindByTelegramID(ctx context.Context, telegramID string) (*driver.Driver, error) {
	if telegramID == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "telegram_id = ?", telegramID)
}

func (r *GormDriverRepository) findOne(ctx context.Context, query string, args ...any) (*driver.Driver, error) {
	var model models.DriverModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists drivers matching the filter
func (r *GormDriverRepository) FindAll(ctx context.Context, filter shared.Filter) ([]driver.Driver, error) {
	var rows []models.DriverModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DriverModel{}), filter)
	if err := applyPagination(query, filter, driverSort).Find(&rows).Error; err != nil {
		return nil, err
	}
	return driversToDomain(rows), nil
}

// Count counts drivers matching the filter
func (r *GormDriverRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DriverModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountAvailable counts drivers that can receive offers
func (r *GormDriverRepository) CountAvailable(ctx context.Context) (int64, error) {
	return r.Count(ctx, shared.Filter{Filters: map[string]any{"status": driver.StatusAvailable}})
}

// FindDispatchCandidates returns available drivers in round-robin order.
// "last_offered_at IS NOT NULL" sorts never-offered drivers first on both
// PostgreSQL and SQLite.
func (r *GormDriverRepository) FindDispatchCandidates(ctx context.Context, exclude []uuid.UUID) ([]driver.Driver, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", driver.StatusAvailable)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	var rows []models.DriverModel
	err := query.
		Order("last_offered_at IS NOT NULL").
		Order("last_offered_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return driversToDomain(rows), nil
}

// MarkOffered stamps the time a driver last received an offer
func (r *GormDriverRepository) MarkOffered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.updateColumn(ctx, id, "last_offered_at", at)
}

// UpdateStatus sets a driver's status without loading the aggregate
func (r *GormDriverRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status driver.Status) error {
	if !status.IsValid() {
		return shared.ErrInvalidInput
	}
	return r.updateColumn(ctx, id, "status", status)
}

func (r *GormDriverRepository) updateColumn(ctx context.Context, id uuid.UUID, column string, value any) error {
	result := r.db.WithContext(ctx).
		Model(&models.DriverModel{}).
		Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Save creates or updates a driver
func (r *GormDriverRepository) Save(ctx context.Context, d *driver.Driver) error {
	return translateError(r.db.WithContext(ctx).Save(models.DriverModelFromDomain(d)).Error)
}

// Delete deletes a driver
func (r *GormDriverRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DriverModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormDriverRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ?", pattern, pattern)
	}
	if status, ok := filter.Filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	return query
}

func driversToDomain(rows []models.DriverModel) []driver.Driver {
	result := make([]driver.Driver, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

// Ensure GormDriverRepository implements DriverRepository
var _ driver.DriverRepository = (*GormDriverRepository)(nil)
