package driver

import (
	"time"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
)

// CreateDriverRequest represents a request to create a driver
type CreateDriverRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=100"`
	Phone      string `json:"phone" binding:"required"`
	Password   string `json:"password" binding:"required,min=6,max=72"`
	TelegramID string `json:"telegram_id" binding:"max=64"`
}

// UpdateDriverRequest represents a request to update a driver. An empty
// password keeps the current one.
type UpdateDriverRequest struct {
	Name       string `json:"name" binding:"required,min=1,max=100"`
	Phone      string `json:"phone" binding:"required"`
	Password   string `json:"password" binding:"omitempty,min=6,max=72"`
	TelegramID string `json:"telegram_id" binding:"max=64"`
}

// StatusRequest changes a driver's availability
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available on_delivery offline"`
}

// DriverListFilter represents filter options for the driver list
type DriverListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=available on_delivery offline"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LoginRequest is a driver phone/password login
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ExchangeRequest trades a driver_login token for a session
type ExchangeRequest struct {
	Token string `json:"token" binding:"required"`
}

// DriverResponse represents a driver in API responses
type DriverResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Status        string     `json:"status"`
	TelegramID    string     `json:"telegram_id,omitempty"`
	HasTelegram   bool       `json:"has_telegram"`
	LastOfferedAt *time.Time `json:"last_offered_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// LoginResponse is returned by driver login and token exchange
type LoginResponse struct {
	*auth.TokenPair
	Driver DriverResponse `json:"driver"`
}

// ToDriverResponse converts a domain Driver to DriverResponse
func ToDriverResponse(d *driver.Driver) DriverResponse {
	return DriverResponse{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		Status:        string(d.Status),
		TelegramID:    d.TelegramID,
		HasTelegram:   d.HasTelegram(),
		LastOfferedAt: d.LastOfferedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToDriverResponses converts a slice of domain Drivers
func ToDriverResponses(drivers []driver.Driver) []DriverResponse {
	out := make([]DriverResponse, len(drivers))
	for i := range drivers {
		out[i] = ToDriverResponse(&drivers[i])
	}
	return out
}
