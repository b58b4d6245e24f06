package persistence

import (
	"context"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists orders matching the filter, newest first by default
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	if filter.OrderBy == "" {
		filter.OrderBy = "created_at"
		if filter.OrderDir == "" {
			filter.OrderDir = "desc"
		}
	}
	var rows []models.OrderModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}).Preload("Items"), filter)
	if err := applyPagination(query, filter, orderSort).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]order.Order, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Count counts orders matching the filter
func (r *GormOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an order and replaces its items
func (r *GormOrderRepository) Save(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		return replaceOrderItems(tx, model)
	})
	return translateError(err)
}

// SaveWithLock updates an order only when the stored version matches the
// aggregate's. On success the aggregate version is bumped.
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	model.Version = o.Version + 1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Select("*").
			Omit(clause.Associations, "id", "created_at").
			Where("id = ? AND version = ?", o.ID, o.Version).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return replaceOrderItems(tx, model)
	})
	if err != nil {
		return translateError(err)
	}
	o.IncrementVersion()
	return nil
}

func replaceOrderItems(tx *gorm.DB, model *models.OrderModel) error {
	if err := tx.Where("order_id = ?", model.ID).Delete(&models.OrderItemModel{}).Error; err != nil {
		return err
	}
	if len(model.Items) == 0 {
		return nil
	}
	return tx.Create(&model.Items).Error
}

// AssignDriver claims an unassigned order in one conditional UPDATE.
// Of two concurrent callers exactly one sees a changed row.
func (r *GormOrderRepository) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND driver_id IS NULL AND status IN ?", orderID, order.AssignableStatuses()).
		Updates(map[string]any{
			"driver_id":   driverID,
			"assigned_at": at,
			"status":      gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", order.StatusPending, order.StatusAccepted),
			"version":     gorm.Expr("version + 1"),
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete deletes an order and its items
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItemModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.OrderModel{}, "id = ?", id)
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return translateError(err)
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReassignRestaurant moves every order of one restaurant to another
func (r *GormOrderRepository) ReassignRestaurant(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("restaurant_id = ?", fromID).
		Update("restaurant_id", toID)
	return result.RowsAffected, result.Error
}

// CountActiveByDriver counts a driver's orders that are still in flight
func (r *GormOrderRepository) CountActiveByDriver(ctx context.Context, driverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("driver_id = ? AND status NOT IN ?", driverID, []order.Status{order.StatusDelivered, order.StatusRejected}).
		Count(&count).Error
	return count, err
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where("LOWER(customer_name) LIKE ? OR customer_phone LIKE ?", pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "restaurant_id":
			query = query.Where("restaurant_id = ?", value)
		case "driver_id":
			query = query.Where("driver_id = ?", value)
		case "customer_phone":
			query = query.Where("customer_phone = ?", value)
		case "payment_id":
			query = query.Where("payment_id = ?", value)
		case "from":
			query = query.Where("created_at >= ?", value)
		case "to":
			query = query.Where("created_at < ?", value)
		}
	}
	return query
}

// Ensure GormOrderRepository implements OrderRepository
var _ order.OrderRepository = (*GormOrderRepository)(nil)

// GormIdempotencyKeyRepository implements IdempotencyKeyRepository using GORM
type GormIdempotencyKeyRepository struct {
	db *gorm.DB
}

// NewGormIdempotencyKeyRepository creates a new GormIdempotencyKeyRepository
func NewGormIdempotencyKeyRepository(db *gorm.DB) *GormIdempotencyKeyRepository {
	return &GormIdempotencyKeyRepository{db: db}
}

// Find returns a stored key
func (r *GormIdempotencyKeyRepository) Find(ctx context.Context, key string) (*order.IdempotencyKey, error) {
	var model models.IdempotencyKeyModel
	if err := r.db.WithContext(ctx).First(&model, "key = ?", key).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save inserts a new key. An expired row with the same key is replaced.
func (r *GormIdempotencyKeyRepository) Save(ctx context.Context, k *order.IdempotencyKey) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ? AND expires_at <= ?", k.Key, k.CreatedAt).
			Delete(&models.IdempotencyKeyModel{}).Error; err != nil {
			return err
		}
		return tx.Create(models.IdempotencyKeyModelFromDomain(k)).Error
	})
	return translateError(err)
}

// DeleteExpired purges keys that expired before now
func (r *GormIdempotencyKeyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.IdempotencyKeyModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormIdempotencyKeyRepository implements IdempotencyKeyRepository
var _ order.IdempotencyKeyRepository = (*GormIdempotencyKeyRepository)(nil)
