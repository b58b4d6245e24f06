package persistence

import (
	"context"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) withPrices(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Prices", func(db *gorm.DB) *gorm.DB {
		// small, medium, large
		return db.Order("CASE size WHEN 'small' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END")
	})
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.withPrices(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple products with their prices
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var rows []models.ProductModel
	if err := r.withPrices(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return productsToDomain(rows), nil
}

// FindAll lists products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	var rows []models.ProductModel
	query := r.applyFilter(r.withPrices(ctx).Model(&models.ProductModel{}), filter)
	if err := applyPagination(query, filter, productSort).Find(&rows).Error; err != nil {
		return nil, err
	}
	return productsToDomain(rows), nil
}

// Count counts products matching the filter
func (r *GormProductRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a product and replaces its prices in one transaction
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", model.ID).Delete(&models.ProductPriceModel{}).Error; err != nil {
			return err
		}
		if len(model.Prices) == 0 {
			return nil
		}
		return tx.Create(&model.Prices).Error
	})
	return translateError(err)
}

// Delete deletes a product and its prices
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductPriceModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.ProductModel{}, "id = ?", id)
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

// ReassignRestaurant moves every product of one restaurant to another
func (r *GormProductRepository) ReassignRestaurant(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("restaurant_id = ?", fromID).
		Update("restaurant_id", toID)
	return result.RowsAffected, result.Error
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	for key, value := range filter.Filters {
		switch key {
		case "restaurant_id":
			query = query.Where("restaurant_id = ?", value)
		case "category":
			query = query.Where("category = ?", value)
		case "product_type":
			query = query.Where("product_type = ?", value)
		case "available":
			query = query.Where("available = ?", value)
		}
	}
	return query
}

func productsToDomain(rows []models.ProductModel) []catalog.Product {
	result := make([]catalog.Product, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
