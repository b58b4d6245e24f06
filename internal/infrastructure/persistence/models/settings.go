package models

import (
	"encoding/json"
	"time"

	"github.com/delivery/backend/internal/domain/settings"
)

// SettingModel stores one key/value setting. Value holds JSON text.
type SettingModel struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SettingModel) TableName() string {
	return "settings"
}

// ToDomain converts the persistence model to a domain Setting
func (m *SettingModel) ToDomain() *settings.Setting {
	return &settings.Setting{
		Key:       m.Key,
		Value:     json.RawMessage(m.Value),
		UpdatedAt: m.UpdatedAt,
	}
}

// SettingModelFromDomain creates a persistence model from a domain Setting
func SettingModelFromDomain(s *settings.Setting) *SettingModel {
	return &SettingModel{
		Key:       s.Key,
		Value:     string(s.Value),
		UpdatedAt: s.UpdatedAt,
	}
}
