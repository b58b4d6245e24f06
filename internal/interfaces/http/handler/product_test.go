package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delivery/backend/internal/application/catalog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProductService struct {
	mock.Mock
}

func (m *mockProductService) product(args mock.Arguments) (*catalog.ProductResponse, error) {
	if v := args.Get(0); v != nil {
		return v.(*catalog.ProductResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductService) Create(ctx context.Context, req catalog.CreateProductRequest) (*catalog.ProductResponse, error) {
	return m.product(m.Called(ctx, req))
}

func (m *mockProductService) GetByID(ctx context.Context, id uuid.UUID) (*catalog.ProductResponse, error) {
	return m.product(m.Called(ctx, id))
}

func (m *mockProductService) List(ctx context.Context, filter catalog.ProductListFilter) ([]catalog.ProductResponse, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.ProductResponse), args.Get(1).(int64), args.Error(2)
}

func (m *mockProductService) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, filter catalog.ProductListFilter) ([]catalog.ProductResponse, int64, error) {
	args := m.Called(ctx, restaurantID, filter)
	return args.Get(0).([]catalog.ProductResponse), args.Get(1).(int64), args.Error(2)
}

func (m *mockProductService) Update(ctx context.Context, id uuid.UUID, req catalog.UpdateProductRequest) (*catalog.ProductResponse, error) {
	return m.product(m.Called(ctx, id, req))
}

func (m *mockProductService) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*catalog.ProductResponse, error) {
	return m.product(m.Called(ctx, id, available))
}

func (m *mockProductService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductService) UploadImage(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*catalog.ProductResponse, error) {
	return m.product(m.Called(ctx, id, fileName, data))
}

func multipartImage(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestProductHandler_UploadImage(t *testing.T) {
	id := uuid.New()
	png := []byte("\x89PNG\r\n\x1a\nfake")

	t.Run("stores image", func(t *testing.T) {
		svc := new(mockProductService)
		svc.On("UploadImage", mock.Anything, id, "margherita.png", png).
			Return(&catalog.ProductResponse{ID: id, ImageURL: "/uploads/products/x.png"}, nil)

		h := NewProductHandler(svc)
		r := newRouter()
		r.POST("/products/:id/image", h.UploadImage)

		body, ct := multipartImage(t, "image", "margherita.png", png)
		req := httptest.NewRequest(http.MethodPost, "/products/"+id.String()+"/image", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := new(mockProductService)
		h := NewProductHandler(svc)
		r := newRouter()
		r.POST("/products/:id/image", h.UploadImage)

		body, ct := multipartImage(t, "photo", "margherita.png", png)
		req := httptest.NewRequest(http.MethodPost, "/products/"+id.String()+"/image", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported type from service", func(t *testing.T) {
		svc := new(mockProductService)
		svc.On("UploadImage", mock.Anything, id, "notes.txt", []byte("hello")).Return(nil, catalog.ErrUnsupportedImage)

		h := NewProductHandler(svc)
		r := newRouter()
		r.POST("/products/:id/image", h.UploadImage)

		body, ct := multipartImage(t, "image", "notes.txt", []byte("hello"))
		req := httptest.NewRequest(http.MethodPost, "/products/"+id.String()+"/image", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "UNSUPPORTED_IMAGE", errorCodeOf(t, rec))
	})
}

func TestProductHandler_SetAvailability(t *testing.T) {
	id := uuid.New()
	svc := new(mockProductService)
	svc.On("SetAvailability", mock.Anything, id, false).Return(&catalog.ProductResponse{ID: id}, nil)

	h := NewProductHandler(svc)
	r := newRouter()
	r.PATCH("/products/:id/availability", h.SetAvailability)

	rec := doRequest(r, http.MethodPatch, "/products/"+id.String()+"/availability", map[string]any{"available": false}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodPatch, "/products/"+id.String()+"/availability", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNumberOfCalls(t, "SetAvailability", 1)
}

func TestProductHandler_List_RestaurantQuery(t *testing.T) {
	restaurantID := uuid.New()
	svc := new(mockProductService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f catalog.ProductListFilter) bool {
		return f.RestaurantID != nil && *f.RestaurantID == restaurantID
	})).Return([]catalog.ProductResponse{}, int64(0), nil)

	h := NewProductHandler(svc)
	r := newRouter()
	r.GET("/products", h.List)

	rec := doRequest(r, http.MethodGet, "/products?restaurant_id="+restaurantID.String(), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
