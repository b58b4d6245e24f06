package handler

import (
	"context"
	"time"

	driverapp "github.com/delivery/backend/internal/application/driver"
	"github.com/delivery/backend/internal/application/identity"
	"github.com/delivery/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// AdminAuthenticator signs admins in and manages sessions of every role
type AdminAuthenticator interface {
	Login(ctx context.Context, input identity.LoginInput) (*identity.LoginResult, error)
	RefreshToken(ctx context.Context, input identity.RefreshTokenInput) (*identity.LoginResult, error)
	Logout(ctx context.Context, input identity.LogoutInput) error
}

// OTPAuthenticator signs customers in with a code sent by SMS
type OTPAuthenticator interface {
	RequestOTP(ctx context.Context, input identity.OTPRequestInput) (*identity.OTPRequestResult, error)
	VerifyOTP(ctx context.Context, input identity.OTPVerifyInput) (*identity.LoginResult, error)
}

// DriverAuthenticator signs drivers in
type DriverAuthenticator interface {
	Login(ctx context.Context, req driverapp.LoginRequest) (*driverapp.LoginResponse, error)
	ExchangeLoginToken(ctx context.Context, token string) (*driverapp.LoginResponse, error)
}

// AuthHandler handles authentication endpoints for admins, customers and drivers
type AuthHandler struct {
	BaseHandler
	admins  AdminAuthenticator
	otp     OTPAuthenticator
	drivers DriverAuthenticator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(admins AdminAuthenticator, otp OTPAuthenticator, drivers DriverAuthenticator) *AuthHandler {
	return &AuthHandler{
		admins:  admins,
		otp:     otp,
		drivers: drivers,
	}
}

// AdminLogin handles POST /auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req identity.LoginInput
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.admins.Login(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Refresh handles POST /auth/refresh. The old refresh token is consumed.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req identity.RefreshTokenInput
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.admins.RefreshToken(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Logout revokes the caller's access token and the refresh token in the
// body, if any
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var input identity.LogoutInput
	// an empty body is fine
	_ = c.ShouldBindJSON(&input)

	input.AccessJTI = claims.ID
	if claims.ExpiresAt != nil {
		input.AccessRemaining = time.Until(claims.ExpiresAt.Time)
	}
	if err := h.admins.Logout(c.Request.Context(), input); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RequestOTP handles POST /auth/otp/request
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req identity.OTPRequestInput
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.otp.RequestOTP(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// VerifyOTP handles POST /auth/otp/verify
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req identity.OTPVerifyInput
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.otp.VerifyOTP(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DriverLogin handles POST /drivers/auth/login
func (h *AuthHandler) DriverLogin(c *gin.Context) {
	var req driverapp.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.drivers.Login(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DriverExchange trades the single-use token from an accept link for a
// normal driver session
func (h *AuthHandler) DriverExchange(c *gin.Context) {
	var req driverapp.ExchangeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.drivers.ExchangeLoginToken(c.Request.Context(), req.Token)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
