package persistence

import (
	"context"

	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

func (r *GormCustomerRepository) withAddresses(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Addresses", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC").Order("id ASC")
	})
}

// FindByID finds a customer with saved addresses
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Customer, error) {
	var model models.CustomerModel
	if err := r.withAddresses(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindByPhone finds a customer by normalized phone
func (r *GormCustomerRepository) FindByPhone(ctx context.Context, phone string) (*identity.Customer, error) {
	var model models.CustomerModel
	if err := r.withAddresses(ctx).Where("phone = ?", phone).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a customer and replaces its addresses
func (r *GormCustomerRepository) Save(ctx context.Context, c *identity.Customer) error {
	model := models.CustomerModelFromDomain(c)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("customer_id = ?", model.ID).Delete(&models.CustomerAddressModel{}).Error; err != nil {
			return err
		}
		if len(model.Addresses) == 0 {
			return nil
		}
		return tx.Create(&model.Addresses).Error
	})
	return translateError(err)
}

// Ensure GormCustomerRepository implements CustomerRepository
var _ identity.CustomerRepository = (*GormCustomerRepository)(nil)
