package handler

import (
	"context"

	"github.com/delivery/backend/internal/application/identity"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CustomerService manages the signed-in customer's profile and addresses
type CustomerService interface {
	Profile(ctx context.Context, customerID uuid.UUID) (*identity.CustomerResponse, error)
	UpdateProfile(ctx context.Context, customerID uuid.UUID, req identity.ProfileRequest) (*identity.CustomerResponse, error)
	ListAddresses(ctx context.Context, customerID uuid.UUID) ([]identity.AddressResponse, error)
	AddAddress(ctx context.Context, customerID uuid.UUID, req identity.AddressRequest) (*identity.AddressResponse, error)
	UpdateAddress(ctx context.Context, customerID, addressID uuid.UUID, req identity.AddressRequest) (*identity.AddressResponse, error)
	RemoveAddress(ctx context.Context, customerID, addressID uuid.UUID) error
}

// CustomerHandler serves /customers/me
type CustomerHandler struct {
	BaseHandler
	customers CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

func (h *CustomerHandler) customerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := principalID(c, auth.RoleCustomer)
	if !ok {
		h.Forbidden(c, "Customer session required")
	}
	return id, ok
}

// Profile handles GET /customers/me
func (h *CustomerHandler) Profile(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}

	resp, err := h.customers.Profile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateProfile handles PUT /customers/me
func (h *CustomerHandler) UpdateProfile(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}
	var req identity.ProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.customers.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListAddresses handles GET /customers/me/addresses
func (h *CustomerHandler) ListAddresses(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}

	rows, err := h.customers.ListAddresses(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// AddAddress handles POST /customers/me/addresses
func (h *CustomerHandler) AddAddress(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}
	var req identity.AddressRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.customers.AddAddress(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// UpdateAddress handles PUT /customers/me/addresses/:id
func (h *CustomerHandler) UpdateAddress(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}
	addressID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req identity.AddressRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.customers.UpdateAddress(c.Request.Context(), id, addressID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RemoveAddress handles DELETE /customers/me/addresses/:id
func (h *CustomerHandler) RemoveAddress(c *gin.Context) {
	id, ok := h.customerID(c)
	if !ok {
		return
	}
	addressID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.customers.RemoveAddress(c.Request.Context(), id, addressID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
