package handler

import (
	"context"

	driverapp "github.com/delivery/backend/internal/application/driver"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DriverService is the driver management surface used by the handler
type DriverService interface {
	Create(ctx context.Context, req driverapp.CreateDriverRequest) (*driverapp.DriverResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*driverapp.DriverResponse, error)
	List(ctx context.Context, filter driverapp.DriverListFilter) ([]driverapp.DriverResponse, int64, error)
	Update(ctx context.Context, id uuid.UUID, req driverapp.UpdateDriverRequest) (*driverapp.DriverResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*driverapp.DriverResponse, error)
}

// DriverHandler handles driver endpoints
type DriverHandler struct {
	BaseHandler
	drivers DriverService
}

// NewDriverHandler creates a new DriverHandler
func NewDriverHandler(drivers DriverService) *DriverHandler {
	return &DriverHandler{drivers: drivers}
}

// List handles GET /drivers
func (h *DriverHandler) List(c *gin.Context) {
	var filter driverapp.DriverListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	rows, total, err := h.drivers.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}

// Get handles GET /drivers/:id
func (h *DriverHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	d, err := h.drivers.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}

// Create handles POST /drivers
func (h *DriverHandler) Create(c *gin.Context) {
	var req driverapp.CreateDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}

	d, err := h.drivers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, d)
}

// Update handles PUT /drivers/:id
func (h *DriverHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req driverapp.UpdateDriverRequest
	if !h.bindJSON(c, &req) {
		return
	}

	d, err := h.drivers.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}

// Delete handles DELETE /drivers/:id. The driver's sessions are revoked.
func (h *DriverHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.drivers.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// SetStatus handles PATCH /drivers/:id/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	h.setStatus(c, id)
}

// SetOwnStatus handles PATCH /drivers/me/status
func (h *DriverHandler) SetOwnStatus(c *gin.Context) {
	id, ok := principalID(c, auth.RoleDriver)
	if !ok {
		h.Forbidden(c, "Driver session required")
		return
	}
	h.setStatus(c, id)
}

func (h *DriverHandler) setStatus(c *gin.Context, id uuid.UUID) {
	var req driverapp.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	d, err := h.drivers.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, d)
}
