package identity

import (
	"time"

	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
)

// LoginInput contains the input for admin login
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenInput contains the input for token refresh
type RefreshTokenInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutInput identifies the tokens to revoke
type LogoutInput struct {
	AccessJTI       string
	AccessRemaining time.Duration
	RefreshToken    string `json:"refresh_token"`
}

// OTPRequestInput asks for a login code
type OTPRequestInput struct {
	Phone string `json:"phone" binding:"required"`
}

// OTPVerifyInput submits a login code
type OTPVerifyInput struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
	Name  string `json:"name" binding:"max=100"`
}

// PrincipalInfo describes who a session belongs to
type PrincipalInfo struct {
	ID   uuid.UUID `json:"id"`
	Role auth.Role `json:"role"`
	Name string    `json:"name"`
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	*auth.TokenPair
	User PrincipalInfo `json:"user"`
}

// OTPRequestResult tells the client how long the code lives
type OTPRequestResult struct {
	ExpiresAt   time.Time `json:"expires_at"`
	RetryAfterS int       `json:"retry_after_seconds"`
}

// ProfileRequest updates the customer profile
type ProfileRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}

// AddressRequest creates or edits a saved address
type AddressRequest struct {
	Label     string   `json:"label" binding:"max=50"`
	Address   string   `json:"address" binding:"required,max=500"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	IsDefault bool     `json:"is_default"`
}

// AddressResponse is a saved address in API responses
type AddressResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	IsDefault bool      `json:"is_default"`
}

// CustomerResponse is the customer profile in API responses
type CustomerResponse struct {
	ID        uuid.UUID         `json:"id"`
	Phone     string            `json:"phone"`
	Name      string            `json:"name"`
	Addresses []AddressResponse `json:"addresses"`
	CreatedAt time.Time         `json:"created_at"`
}

// ToAddressResponse converts a domain Address
func ToAddressResponse(a *identity.Address) AddressResponse {
	resp := AddressResponse{
		ID:        a.ID,
		Label:     a.Label,
		Address:   a.Address,
		IsDefault: a.IsDefault,
	}
	if a.Location != nil {
		lat, lon := a.Location.Latitude, a.Location.Longitude
		resp.Latitude, resp.Longitude = &lat, &lon
	}
	return resp
}

// ToCustomerResponse converts a domain Customer
func ToCustomerResponse(c *identity.Customer) CustomerResponse {
	addresses := make([]AddressResponse, len(c.Addresses))
	for i := range c.Addresses {
		addresses[i] = ToAddressResponse(&c.Addresses[i])
	}
	return CustomerResponse{
		ID:        c.ID,
		Phone:     c.Phone,
		Name:      c.Name,
		Addresses: addresses,
		CreatedAt: c.CreatedAt,
	}
}
