package catalog

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/delivery/backend/internal/domain/catalog"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize is the largest accepted product image
const MaxImageSize = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedImage is returned for uploads that are not an accepted image type
var ErrUnsupportedImage = shared.NewDomainError("UNSUPPORTED_IMAGE", "Image must be JPEG, PNG, WebP or GIF and at most 5 MB")

// ImageStore uploads product images and returns their public URL.
// Implemented by the storage package (S3 or local disk).
type ImageStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ProductService handles product administration
type ProductService struct {
	productRepo    catalog.ProductRepository
	restaurantRepo restaurant.RestaurantRepository
	images         ImageStore
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewProductService creates a new ProductService. images may be nil, in
// which case uploads are refused.
func NewProductService(
	productRepo catalog.ProductRepository,
	restaurantRepo restaurant.RestaurantRepository,
	images ImageStore,
	logger *zap.Logger,
) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo:    productRepo,
		restaurantRepo: restaurantRepo,
		images:         images,
		logger:         logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ProductService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a product for an existing restaurant
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	if _, err := s.restaurantRepo.FindByID(ctx, req.RestaurantID); err != nil {
		return nil, err
	}

	product, err := catalog.NewProduct(req.RestaurantID, req.Name, catalog.ProductType(req.ProductType), toDomainPrices(req.Prices))
	if err != nil {
		return nil, err
	}
	if err := product.Update(req.Name, req.Description, req.Category, product.ProductType); err != nil {
		return nil, err
	}
	if req.ImageURL != "" {
		product.SetImage(req.ImageURL)
	}
	if req.Available != nil {
		product.SetAvailability(*req.Available)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)

	resp := ToProductResponse(product)
	return &resp, nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List retrieves a page of products and the total count
func (s *ProductService) List(ctx context.Context, filter ProductListFilter) ([]ProductResponse, int64, error) {
	if filter.OrderBy == "" {
		filter.OrderBy = "name"
		if filter.OrderDir == "" {
			filter.OrderDir = "asc"
		}
	}

	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
		Filters:  make(map[string]interface{}),
	}.Normalize()

	if filter.RestaurantID != nil {
		domainFilter.Filters["restaurant_id"] = *filter.RestaurantID
	}
	if filter.Category != "" {
		domainFilter.Filters["category"] = filter.Category
	}
	if filter.ProductType != "" {
		domainFilter.Filters["product_type"] = filter.ProductType
	}
	if filter.Available != nil {
		domainFilter.Filters["available"] = *filter.Available
	}

	products, err := s.productRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.productRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToProductResponses(products), total, nil
}

// ListByRestaurant lists the products of one restaurant
func (s *ProductService) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, filter ProductListFilter) ([]ProductResponse, int64, error) {
	if _, err := s.restaurantRepo.FindByID(ctx, restaurantID); err != nil {
		return nil, 0, err
	}
	filter.RestaurantID = &restaurantID
	return s.List(ctx, filter)
}

// Update replaces a product's fields and its size prices
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := product.Update(req.Name, req.Description, req.Category, catalog.ProductType(req.ProductType)); err != nil {
		return nil, err
	}
	if err := product.SetPrices(toDomainPrices(req.Prices)); err != nil {
		return nil, err
	}
	if req.Available != nil {
		product.SetAvailability(*req.Available)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)

	resp := ToProductResponse(product)
	return &resp, nil
}

// SetAvailability marks a product orderable or not
func (s *ProductService) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*ProductResponse, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.SetAvailability(available)
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)

	resp := ToProductResponse(product)
	return &resp, nil
}

// Delete deletes a product
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.productRepo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.productRepo.Delete(ctx, id)
}

// UploadImage stores the image in object storage and points the product at it.
// The content type is sniffed from the data, the declared one is ignored.
func (s *ProductService) UploadImage(ctx context.Context, id uuid.UUID, fileName string, data []byte) (*ProductResponse, error) {
	if s.images == nil {
		return nil, shared.NewDomainError("STORAGE_UNAVAILABLE", "Image storage is not configured")
	}
	if len(data) == 0 || len(data) > MaxImageSize {
		return nil, ErrUnsupportedImage
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := imageKey(product.ID, fileName, ext)
	url, err := s.images.Upload(ctx, key, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload product image: %w", err)
	}
	product.SetImage(url)
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product image uploaded",
		zap.String("product_id", product.ID.String()),
		zap.String("key", key),
		zap.Int("bytes", len(data)))

	resp := ToProductResponse(product)
	return &resp, nil
}

// imageKey builds products/<id>/<slug>-<short uuid><ext>
func imageKey(productID uuid.UUID, fileName, ext string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, "\\", "/")), path.Ext(fileName))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "image"
	}
	return fmt.Sprintf("products/%s/%s-%s%s", productID, slug, uuid.NewString()[:8], ext)
}

func (s *ProductService) publish(ctx context.Context, product *catalog.Product) {
	events := product.PullDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish product event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}
