package handler

import (
	"context"

	"github.com/delivery/backend/internal/application/geocode"
	"github.com/gin-gonic/gin"
)

// AddressLookup resolves addresses for the checkout form
type AddressLookup interface {
	Search(ctx context.Context, query string) (*geocode.SearchResult, error)
	Reverse(ctx context.Context, lat, lon float64) (*geocode.ReverseResult, error)
}

// GeocodeSearchQuery is the query of GET /geocode
type GeocodeSearchQuery struct {
	Q string `form:"q" binding:"required,min=3,max=300"`
}

// GeocodeReverseQuery is the query of GET /geocode/reverse
type GeocodeReverseQuery struct {
	Lat *float64 `form:"lat" binding:"required,latitude"`
	Lon *float64 `form:"lon" binding:"required,longitude"`
}

// GeocodeHandler handles address lookup endpoints
type GeocodeHandler struct {
	BaseHandler
	lookup AddressLookup
}

// NewGeocodeHandler creates a new GeocodeHandler
func NewGeocodeHandler(lookup AddressLookup) *GeocodeHandler {
	return &GeocodeHandler{lookup: lookup}
}

// Search handles GET /geocode?q=
func (h *GeocodeHandler) Search(c *gin.Context) {
	var q GeocodeSearchQuery
	if !h.bindQuery(c, &q) {
		return
	}

	result, err := h.lookup.Search(c.Request.Context(), q.Q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reverse handles GET /geocode/reverse?lat=&lon=
func (h *GeocodeHandler) Reverse(c *gin.Context) {
	var q GeocodeReverseQuery
	if !h.bindQuery(c, &q) {
		return
	}

	result, err := h.lookup.Reverse(c.Request.Context(), *q.Lat, *q.Lon)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
