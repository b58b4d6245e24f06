package handler

import (
	"context"
	"io"

	"github.com/delivery/backend/internal/application/catalog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProductService is the catalog use-case surface used by the handler
type ProductService interface {
	Create(ctx context.Context, req catalog.CreateProductRequest) (*catalog.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.ProductResponse, error)
	List(ctx context.Context, filter catalog.ProductListFilter) ([]catalog.ProductResponse, int64, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, filter catalog.ProductListFilter) ([]catalog.ProductResponse, int64, error)
	Update(ctx context.Context, id uuid.UUID, req catalog.UpdateProductRequest) (*catalog.ProductResponse, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*catalog.ProductResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UploadImage(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*catalog.ProductResponse, error)
}

// ProductHandler handles product endpoints
type ProductHandler struct {
	BaseHandler
	products ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalog.ProductListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	restaurantID, ok := h.queryID(c, "restaurant_id")
	if !ok {
		return
	}
	filter.RestaurantID = restaurantID

	rows, total, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}

// ListByRestaurant handles GET /restaurants/:id/products
func (h *ProductHandler) ListByRestaurant(c *gin.Context) {
	restaurantID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var filter catalog.ProductListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	rows, total, err := h.products.ListByRestaurant(c.Request.Context(), restaurantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req catalog.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.products.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, p)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req catalog.UpdateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.products.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// SetAvailability handles PATCH /products/:id/availability
func (h *ProductHandler) SetAvailability(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req catalog.AvailabilityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.products.SetAvailability(c.Request.Context(), id, *req.Available)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// Delete handles DELETE /products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UploadImage accepts a multipart "image" field and stores it as the
// product picture
func (h *ProductHandler) UploadImage(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	header, err := c.FormFile("image")
	if err != nil {
		h.BadRequest(c, "Missing image file")
		return
	}
	if header.Size > catalog.MaxImageSize {
		h.HandleError(c, catalog.ErrUnsupportedImage)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, catalog.MaxImageSize+1))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	p, err := h.products.UploadImage(c.Request.Context(), id, header.Filename, data)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}
