package handler

import (
	"context"

	"github.com/delivery/backend/internal/application/restaurant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RestaurantService is the restaurant use-case surface used by the handler
type RestaurantService interface {
	Create(ctx context.Context, req restaurant.RestaurantRequest) (*restaurant.RestaurantResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*restaurant.RestaurantResponse, error)
	List(ctx context.Context, filter restaurant.ListFilter) ([]restaurant.RestaurantResponse, int64, error)
	Update(ctx context.Context, id uuid.UUID, req restaurant.RestaurantRequest) (*restaurant.RestaurantResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleOpen(ctx context.Context, id uuid.UUID) (*restaurant.RestaurantResponse, error)
	SetCoordinates(ctx context.Context, id uuid.UUID, req restaurant.CoordinatesRequest) (*restaurant.RestaurantResponse, error)
}

// RestaurantHandler handles restaurant endpoints
type RestaurantHandler struct {
	BaseHandler
	restaurants RestaurantService
}

// NewRestaurantHandler creates a new RestaurantHandler
func NewRestaurantHandler(restaurants RestaurantService) *RestaurantHandler {
	return &RestaurantHandler{restaurants: restaurants}
}

// List handles GET /restaurants
func (h *RestaurantHandler) List(c *gin.Context) {
	var filter restaurant.ListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	rows, total, err := h.restaurants.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}

// Get handles GET /restaurants/:id
func (h *RestaurantHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	r, err := h.restaurants.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// Create handles POST /restaurants
func (h *RestaurantHandler) Create(c *gin.Context) {
	var req restaurant.RestaurantRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.restaurants.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, r)
}

// Update handles PUT /restaurants/:id
func (h *RestaurantHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req restaurant.RestaurantRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.restaurants.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// Delete handles DELETE /restaurants/:id
func (h *RestaurantHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.restaurants.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ToggleOpen flips the manual open/closed switch
func (h *RestaurantHandler) ToggleOpen(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	r, err := h.restaurants.ToggleOpen(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}

// SetCoordinates pins a restaurant on the map by hand
func (h *RestaurantHandler) SetCoordinates(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req restaurant.CoordinatesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.restaurants.SetCoordinates(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, r)
}
