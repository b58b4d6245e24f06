package handler

import (
	"context"
	"encoding/json"

	settingsapp "github.com/delivery/backend/internal/application/settings"
	"github.com/gin-gonic/gin"
)

// SettingsService reads and writes store settings
type SettingsService interface {
	Get(ctx context.Context, key string) (*settingsapp.SettingResponse, error)
	List(ctx context.Context) ([]settingsapp.SettingResponse, error)
	Set(ctx context.Context, key string, value json.RawMessage) (*settingsapp.SettingResponse, error)
}

// SetSettingRequest carries the new JSON value of a setting
type SetSettingRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// SettingsHandler handles settings endpoints
type SettingsHandler struct {
	BaseHandler
	settings SettingsService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settings SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// List handles GET /settings
func (h *SettingsHandler) List(c *gin.Context) {
	rows, err := h.settings.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

// Get handles GET /settings/:key
func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, s)
}

// Set handles PUT /settings/:key
func (h *SettingsHandler) Set(c *gin.Context) {
	var req SetSettingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	s, err := h.settings.Set(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, s)
}
