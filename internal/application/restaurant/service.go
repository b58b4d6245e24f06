package restaurant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidCoordinates = shared.NewDomainError("INVALID_COORDINATES", "Latitude must be within [-90, 90] and longitude within [-180, 180]")

// Service handles restaurant administration
type Service struct {
	repo           restaurant.RestaurantRepository
	geocoder       shared.Geocoder
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewService creates a restaurant service. geocoder may be nil.
func NewService(repo restaurant.RestaurantRepository, geocoder shared.Geocoder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		geocoder: geocoder,
		logger:   logger,
		now:      time.Now,
	}
}

// SetLocation evaluates opening hours in loc
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.now = func() time.Time { return time.Now().In(loc) }
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a restaurant
func (s *Service) Create(ctx context.Context, req RestaurantRequest) (*RestaurantResponse, error) {
	r, err := restaurant.NewRestaurant(req.Name, req.Phone, req.Address)
	if err != nil {
		return nil, err
	}
	if err := r.Update(req.Name, req.Phone, req.Address, req.DeliveryTime); err != nil {
		return nil, err
	}
	if err := applyRequest(r, req); err != nil {
		return nil, err
	}
	s.geocodeIfMissing(ctx, r)

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, r)

	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

// Get returns a restaurant by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*RestaurantResponse, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

// List returns a page of restaurants and the total count
func (s *Service) List(ctx context.Context, filter ListFilter) ([]RestaurantResponse, int64, error) {
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

	if filter.Category != "" {
		domainFilter.Filters["category"] = filter.Category
	}
	if filter.IsOpen != nil {
		domainFilter.Filters["is_open"] = *filter.IsOpen
	}

	rows, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	out := make([]RestaurantResponse, len(rows))
	for i := range rows {
		out[i] = ToRestaurantResponse(&rows[i], now)
	}
	return out, total, nil
}

// Update replaces a restaurant's editable fields
func (s *Service) Update(ctx context.Context, id uuid.UUID, req RestaurantRequest) (*RestaurantResponse, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.Update(req.Name, req.Phone, req.Address, req.DeliveryTime); err != nil {
		return nil, err
	}
	if err := applyRequest(r, req); err != nil {
		return nil, err
	}
	s.geocodeIfMissing(ctx, r)

	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, r)

	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

// Delete removes a restaurant
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ToggleOpen flips the manual open flag
func (s *Service) ToggleOpen(ctx context.Context, id uuid.UUID) (*RestaurantResponse, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	open := r.ToggleOpen()
	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, r)
	s.logger.Info("restaurant open flag toggled",
		zap.String("restaurant_id", id.String()),
		zap.Bool("is_open", open))

	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

// SetCoordinates stores admin-provided coordinates
func (s *Service) SetCoordinates(ctx context.Context, id uuid.UUID, req CoordinatesRequest) (*RestaurantResponse, error) {
	point, err := valueobject.NewGeoPoint(req.Latitude, req.Longitude)
	if err != nil {
		return nil, errInvalidCoordinates
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.SetLocation(&point)
	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

// SetImage sets the restaurant image URL
func (s *Service) SetImage(ctx context.Context, id uuid.UUID, url string) (*RestaurantResponse, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.SetImage(url)
	if err := s.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	resp := ToRestaurantResponse(r, s.now())
	return &resp, nil
}

func applyRequest(r *restaurant.Restaurant, req RestaurantRequest) error {
	r.SetCategories(req.Categories)
	if req.MinOrder != nil {
		if err := r.SetMinOrder(*req.MinOrder); err != nil {
			return err
		}
	}
	if req.Rating != nil {
		if err := r.SetRating(*req.Rating); err != nil {
			return err
		}
	}
	if in := req.OpeningHours; in != nil {
		h, err := in.toDomain()
		if err != nil {
			return shared.NewDomainError("INVALID_OPENING_HOURS", err.Error())
		}
		r.SetOpeningHours(h)
	}
	if req.Latitude != nil || req.Longitude != nil {
		point, err := valueobject.GeoPointFromPtrs(req.Latitude, req.Longitude)
		if err != nil {
			return errInvalidCoordinates
		}
		r.SetLocation(point)
	}
	if req.ImageURL != "" {
		r.SetImage(req.ImageURL)
	}
	return nil
}

// geocodeIfMissing resolves the address when no coordinates are known.
// Failures leave the restaurant without a location.
func (s *Service) geocodeIfMissing(ctx context.Context, r *restaurant.Restaurant) {
	if s.geocoder == nil || r.HasLocation() {
		return
	}
	point, err := s.geocoder.Geocode(ctx, r.Address)
	if err != nil {
		level := s.logger.Warn
		if errors.Is(err, shared.ErrAddressNotFound) {
			level = s.logger.Info
		}
		level("restaurant geocoding failed",
			zap.String("address", r.Address),
			zap.Error(err))
		return
	}
	r.SetLocation(&point)
}

func (s *Service) publish(ctx context.Context, r *restaurant.Restaurant) {
	events := r.PullDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish restaurant event",
				zap.String("event_type", event.EventType()),
				zap.Error(fmt.Errorf("restaurant %s: %w", r.ID, err)))
		}
	}
}
