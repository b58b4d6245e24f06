package persistence

import (
	"context"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRestaurantRepository implements RestaurantRepository using GORM
type GormRestaurantRepository struct {
	db *gorm.DB
}

// NewGormRestaurantRepository creates a new GormRestaurantRepository
func NewGormRestaurantRepository(db *gorm.DB) *GormRestaurantRepository {
	return &GormRestaurantRepository{db: db}
}

// FindByID finds a restaurant by its ID
func (r *GormRestaurantRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.Restaurant, error) {
	var model models.RestaurantModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByPhone finds a restaurant by its normalized phone
func (r *GormRestaurantRepository) FindByPhone(ctx context.Context, phone string) (*restaurant.Restaurant, error) {
	var model models.RestaurantModel
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists restaurants matching the filter
func (r *GormRestaurantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.Restaurant, error) {
	var rows []models.RestaurantModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RestaurantModel{}), filter)
	if err := applyPagination(query, filter, restaurantSort).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]restaurant.Restaurant, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Count counts restaurants matching the filter
func (r *GormRestaurantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RestaurantModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindWithoutLocation returns restaurants lacking coordinates, oldest first
func (r *GormRestaurantRepository) FindWithoutLocation(ctx context.Context, limit int) ([]restaurant.Restaurant, error) {
	var rows []models.RestaurantModel
	query := r.db.WithContext(ctx).
		Where("latitude IS NULL OR longitude IS NULL").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]restaurant.Restaurant, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// Save creates or updates a restaurant
func (r *GormRestaurantRepository) Save(ctx context.Context, rest *restaurant.Restaurant) error {
	model := models.RestaurantModelFromDomain(rest)
	return translateError(r.db.WithContext(ctx).Save(model).Error)
}

// Delete deletes a restaurant. Products cascade in the schema.
func (r *GormRestaurantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.RestaurantModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormRestaurantRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "is_open":
			query = query.Where("is_open = ?", value)
		case "category":
			if s, ok := value.(string); ok && s != "" {
				// categories holds a JSON array of strings
				query = query.Where("LOWER(categories) LIKE ?", searchPattern(`"`+s+`"`))
			}
		}
	}
	return query
}

// Ensure GormRestaurantRepository implements RestaurantRepository
var _ restaurant.RestaurantRepository = (*GormRestaurantRepository)(nil)
