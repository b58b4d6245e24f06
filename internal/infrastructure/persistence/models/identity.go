package models

import (
	"time"

	"github.com/delivery/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// AdminUserModel is the persistence model for dashboard operators
type AdminUserModel struct {
	AggregateModel
	Username     string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	PasswordHash string     `gorm:"type:varchar(255);not null"`
	Active       bool       `gorm:"not null;default:true"`
	LastLoginAt  *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (AdminUserModel) TableName() string {
	return "admin_users"
}

// ToDomain converts the persistence model to a domain AdminUser
func (m *AdminUserModel) ToDomain() *identity.AdminUser {
	u := &identity.AdminUser{
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Active:       m.Active,
		LastLoginAt:  m.LastLoginAt,
	}
	m.PopulateAggregateRoot(&u.BaseAggregateRoot)
	return u
}

// AdminUserModelFromDomain creates a persistence model from a domain AdminUser
func AdminUserModelFromDomain(u *identity.AdminUser) *AdminUserModel {
	m := &AdminUserModel{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		LastLoginAt:  u.LastLoginAt,
	}
	m.FromDomainAggregateRoot(u.BaseAggregateRoot)
	return m
}

// CustomerModel is the persistence model for OTP-authenticated customers
type CustomerModel struct {
	AggregateModel
	Phone     string                 `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name      string                 `gorm:"type:varchar(100);not null;default:''"`
	Addresses []CustomerAddressModel `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// CustomerAddressModel is a saved delivery address
type CustomerAddressModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	Label      string    `gorm:"type:varchar(50);not null;default:''"`
	Address    string    `gorm:"type:text;not null"`
	Latitude   *float64
	Longitude  *float64
	IsDefault  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerAddressModel) TableName() string {
	return "customer_addresses"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *identity.Customer {
	c := &identity.Customer{
		Phone:     m.Phone,
		Name:      m.Name,
		Addresses: make([]identity.Address, 0, len(m.Addresses)),
	}
	m.PopulateAggregateRoot(&c.BaseAggregateRoot)
	for _, a := range m.Addresses {
		c.Addresses = append(c.Addresses, identity.Address{
			ID:        a.ID,
			Label:     a.Label,
			Address:   a.Address,
			Location:  joinLocation(a.Latitude, a.Longitude),
			IsDefault: a.IsDefault,
		})
	}
	return c
}

// CustomerModelFromDomain creates a persistence model from a domain Customer
func CustomerModelFromDomain(c *identity.Customer) *CustomerModel {
	m := &CustomerModel{
		Phone:     c.Phone,
		Name:      c.Name,
		Addresses: make([]CustomerAddressModel, 0, len(c.Addresses)),
	}
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	for _, a := range c.Addresses {
		lat, lon := splitLocation(a.Location)
		m.Addresses = append(m.Addresses, CustomerAddressModel{
			ID:         a.ID,
			CustomerID: c.ID,
			Label:      a.Label,
			Address:    a.Address,
			Latitude:   lat,
			Longitude:  lon,
			IsDefault:  a.IsDefault,
			CreatedAt:  c.UpdatedAt,
		})
	}
	return m
}

// OTPCodeModel stores hashed one-time codes
type OTPCodeModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Phone      string    `gorm:"type:varchar(20);not null;index"`
	CodeHash   string    `gorm:"type:varchar(64);not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	Attempts   int       `gorm:"not null;default:0"`
	ConsumedAt *time.Time
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (OTPCodeModel) TableName() string {
	return "otp_codes"
}

// ToDomain converts the persistence model to a domain OTPCode
func (m *OTPCodeModel) ToDomain() *identity.OTPCode {
	return &identity.OTPCode{
		ID:         m.ID,
		Phone:      m.Phone,
		CodeHash:   m.CodeHash,
		ExpiresAt:  m.ExpiresAt,
		Attempts:   m.Attempts,
		ConsumedAt: m.ConsumedAt,
		CreatedAt:  m.CreatedAt,
	}
}

// OTPCodeModelFromDomain creates a persistence model from a domain OTPCode
func OTPCodeModelFromDomain(o *identity.OTPCode) *OTPCodeModel {
	return &OTPCodeModel{
		ID:         o.ID,
		Phone:      o.Phone,
		CodeHash:   o.CodeHash,
		ExpiresAt:  o.ExpiresAt,
		Attempts:   o.Attempts,
		ConsumedAt: o.ConsumedAt,
		CreatedAt:  o.CreatedAt,
	}
}
