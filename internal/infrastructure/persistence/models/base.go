package models

import (
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// PopulateAggregateRoot copies the persisted base fields into a domain aggregate root
func (m *AggregateModel) PopulateAggregateRoot(a *shared.BaseAggregateRoot) {
	a.BaseEntity = m.BaseModel.ToDomain()
	a.Version = m.Version
}

// splitLocation returns nullable latitude/longitude columns for a point
func splitLocation(p *valueobject.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lon := p.Latitude, p.Longitude
	return &lat, &lon
}

// joinLocation rebuilds a point from nullable columns. Out-of-range values read as missing.
func joinLocation(lat, lon *float64) *valueobject.GeoPoint {
	p, err := valueobject.GeoPointFromPtrs(lat, lon)
	if err != nil {
		return nil
	}
	return p
}

// All returns every model in dependency order, for AutoMigrate in tests and tooling.
// Production schemas come from the SQL migrations.
func All() []any {
	return []any{
		&RestaurantModel{},
		&ProductModel{},
		&ProductPriceModel{},
		&DriverModel{},
		&OrderModel{},
		&OrderItemModel{},
		&IdempotencyKeyModel{},
		&AdminUserModel{},
		&CustomerModel{},
		&CustomerAddressModel{},
		&OTPCodeModel{},
		&DispatchOfferModel{},
		&TelegramMessageModel{},
		&SettingModel{},
	}
}
