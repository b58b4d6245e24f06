package models

import (
	"time"

	"github.com/delivery/backend/internal/domain/driver"
)

// DriverModel is the persistence model for the Driver aggregate
type DriverModel struct {
	AggregateModel
	Name          string        `gorm:"type:varchar(100);not null"`
	Phone         string        `gorm:"type:varchar(20);not null;uniqueIndex"`
	PasswordHash  string        `gorm:"type:varchar(255);not null"`
	Status        driver.Status `gorm:"type:varchar(20);not null;default:'offline';index"`
	TelegramID    string        `gorm:"type:varchar(50);not null;default:'';index"`
	LastOfferedAt *time.Time
}

// TableName returns the table name for GORM
func (DriverModel) TableName() string {
	return "drivers"
}

// ToDomain converts the persistence model to a domain Driver
func (m *DriverModel) ToDomain() *driver.Driver {
	d := &driver.Driver{
		Name:          m.Name,
		Phone:         m.Phone,
		PasswordHash:  m.PasswordHash,
		Status:        m.Status,
		TelegramID:    m.TelegramID,
		LastOfferedAt: m.LastOfferedAt,
	}
	m.PopulateAggregateRoot(&d.BaseAggregateRoot)
	return d
}

// DriverModelFromDomain creates a persistence model from a domain Driver
func DriverModelFromDomain(d *driver.Driver) *DriverModel {
	m := &DriverModel{
		Name:          d.Name,
		Phone:         d.Phone,
		PasswordHash:  d.PasswordHash,
		Status:        d.Status,
		TelegramID:    d.TelegramID,
		LastOfferedAt: d.LastOfferedAt,
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	return m
}
