package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/delivery/backend/internal/application/maintenance"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMaintenanceStore implements maintenance.Store using GORM
type GormMaintenanceStore struct {
	db *gorm.DB
}

// NewGormMaintenanceStore creates a new GormMaintenanceStore
func NewGormMaintenanceStore(db *gorm.DB) *GormMaintenanceStore {
	return &GormMaintenanceStore{db: db}
}

// ListOpeningHours returns the raw opening_hours of every restaurant that has one
func (s *GormMaintenanceStore) ListOpeningHours(ctx context.Context) ([]maintenance.RawOpeningHours, error) {
	var rows []struct {
		ID           uuid.UUID
		Name         string
		OpeningHours string
	}
	err := s.db.WithContext(ctx).
		Model(&models.RestaurantModel{}).
		Select("id, name, opening_hours").
		Where("opening_hours <> ''").
		Order("created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]maintenance.RawOpeningHours, len(rows))
	for i, r := range rows {
		result[i] = maintenance.RawOpeningHours{RestaurantID: r.ID, Name: r.Name, Raw: r.OpeningHours}
	}
	return result, nil
}

// UpdateOpeningHours overwrites the stored opening_hours text
func (s *GormMaintenanceStore) UpdateOpeningHours(ctx context.Context, restaurantID uuid.UUID, value string) error {
	return s.updateColumn(ctx, &models.RestaurantModel{}, restaurantID, "opening_hours", value)
}

// ListImageURLs returns image URLs of restaurants then products
func (s *GormMaintenanceStore) ListImageURLs(ctx context.Context) ([]maintenance.ImageRef, error) {
	var result []maintenance.ImageRef
	for _, table := range []string{maintenance.TableRestaurants, maintenance.TableProducts} {
		var rows []struct {
			ID       uuid.UUID
			ImageURL string
		}
		err := s.db.WithContext(ctx).
			Table(table).
			Select("id, image_url").
			Where("image_url IS NOT NULL AND image_url <> ''").
			Order("id ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("list %s image urls: %w", table, err)
		}
		for _, r := range rows {
			result = append(result, maintenance.ImageRef{Table: table, ID: r.ID, URL: r.ImageURL})
		}
	}
	return result, nil
}

// UpdateImageURL rewrites one image_url cell
func (s *GormMaintenanceStore) UpdateImageURL(ctx context.Context, ref maintenance.ImageRef, url string) error {
	switch ref.Table {
	case maintenance.TableRestaurants:
		return s.updateColumn(ctx, &models.RestaurantModel{}, ref.ID, "image_url", url)
	case maintenance.TableProducts:
		return s.updateColumn(ctx, &models.ProductModel{}, ref.ID, "image_url", url)
	}
	return fmt.Errorf("unknown image table %q", ref.Table)
}

// ListRestaurantKeys returns the identifying columns of all restaurants, oldest first
func (s *GormMaintenanceStore) ListRestaurantKeys(ctx context.Context) ([]maintenance.RestaurantKey, error) {
	var rows []struct {
		ID        uuid.UUID
		Name      string
		Address   string
		Phone     string
		CreatedAt time.Time
	}
	err := s.db.WithContext(ctx).
		Model(&models.RestaurantModel{}).
		Select("id, name, address, phone, created_at").
		Order("created_at ASC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]maintenance.RestaurantKey, len(rows))
	for i, r := range rows {
		result[i] = maintenance.RestaurantKey{
			ID:        r.ID,
			Name:      r.Name,
			Address:   r.Address,
			Phone:     r.Phone,
			CreatedAt: r.CreatedAt,
		}
	}
	return result, nil
}

// MergeRestaurants folds dropID into keepID
func (s *GormMaintenanceStore) MergeRestaurants(ctx context.Context, keepID, dropID uuid.UUID) (maintenance.MergeResult, error) {
	var res maintenance.MergeResult
	if keepID == dropID {
		return res, shared.NewDomainError("INVALID_MERGE", "Cannot merge a restaurant into itself")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products := NewGormProductRepository(tx)
		orders := NewGormOrderRepository(tx)

		var err error
		if res.Products, err = products.ReassignRestaurant(ctx, dropID, keepID); err != nil {
			return fmt.Errorf("reassign products: %w", err)
		}
		if res.Orders, err = orders.ReassignRestaurant(ctx, dropID, keepID); err != nil {
			return fmt.Errorf("reassign orders: %w", err)
		}
		return NewGormRestaurantRepository(tx).Delete(ctx, dropID)
	})
	if err != nil {
		return maintenance.MergeResult{}, err
	}
	return res, nil
}

func (s *GormMaintenanceStore) updateColumn(ctx context.Context, model any, id uuid.UUID, column string, value any) error {
	result := s.db.WithContext(ctx).
		Model(model).
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

// Ensure GormMaintenanceStore implements maintenance.Store
var _ maintenance.Store = (*GormMaintenanceStore)(nil)
