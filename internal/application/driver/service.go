package driver

import (
	"context"
	"errors"
	"strings"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned for an unknown phone or a wrong password
	ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid phone or password")

	// ErrLoginTokenUsed is returned when a driver_login token is presented twice
	ErrLoginTokenUsed = shared.NewDomainError("TOKEN_INVALID", "Login link was already used")
)

// Service handles driver management and driver authentication
type Service struct {
	repo       driver.DriverRepository
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	logger     *zap.Logger
}

// NewService creates a new driver service. blacklist may be nil, in which
// case deleted drivers keep their tokens until expiry and login links are
// not single-use.
func NewService(repo driver.DriverRepository, jwtService *auth.JWTService, blacklist auth.TokenBlacklist, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		jwtService: jwtService,
		blacklist:  blacklist,
		logger:     logger,
	}
}

// Create creates a new driver
func (s *Service) Create(ctx context.Context, req CreateDriverRequest) (*DriverResponse, error) {
	d, err := driver.NewDriver(req.Name, req.Phone, req.Password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TelegramID) != "" {
		if err := d.SetTelegram(req.TelegramID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("driver created", zap.String("driver_id", d.ID.String()))
	resp := ToDriverResponse(d)
	return &resp, nil
}

// Get returns a driver by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DriverResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToDriverResponse(d)
	return &resp, nil
}

// List returns a page of drivers and the total count
func (s *Service) List(ctx context.Context, filter DriverListFilter) ([]DriverResponse, int64, error) {
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
	if filter.Status != "" {
		status := driver.Status(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.DomainErrorf("INVALID_STATUS", "Unknown driver status %q", filter.Status)
		}
		domainFilter.Filters["status"] = status
	}

	drivers, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	return ToDriverResponses(drivers), total, nil
}

// Update updates a driver's profile and, when given, password
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateDriverRequest) (*DriverResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.Update(req.Name, req.Phone); err != nil {
		return nil, err
	}
	if req.Password != "" {
		if err := d.ChangePassword(req.Password); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.TelegramID) != "" {
		if err := d.SetTelegram(req.TelegramID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	resp := ToDriverResponse(d)
	return &resp, nil
}

// Delete deletes a driver and revokes their outstanding tokens
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.blacklist != nil && s.jwtService != nil {
		if err := s.blacklist.RevokeSubject(ctx, id.String(), s.jwtService.RefreshTTL()); err != nil {
			s.logger.Warn("revoke deleted driver tokens", zap.String("driver_id", id.String()), zap.Error(err))
		}
	}
	s.logger.Info("driver deleted", zap.String("driver_id", id.String()))
	return nil
}

// SetStatus moves a driver to a new availability status
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*DriverResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.SetStatus(driver.Status(status)); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("driver status changed",
		zap.String("driver_id", d.ID.String()),
		zap.String("status", string(d.Status)))
	resp := ToDriverResponse(d)
	return &resp, nil
}

// LinkTelegram binds a Telegram chat to the driver owning phone
func (s *Service) LinkTelegram(ctx context.Context, phone, chatID string) (*DriverResponse, error) {
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PHONE", "Driver phone must have 8 digits")
	}
	d, err := s.repo.FindByPhone(ctx, p.Local())
	if err != nil {
		return nil, err
	}
	if err := d.LinkTelegram(chatID); err != nil {
		if errors.Is(err, driver.ErrTelegramAlreadyLinked) {
			s.logger.Warn("telegram link refused, driver bound to another chat",
				zap.String("driver_id", d.ID.String()),
				zap.String("chat_id", chatID))
		}
		return nil, err
	}
	if err := s.repo.Save(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("driver linked to telegram", zap.String("driver_id", d.ID.String()))
	resp := ToDriverResponse(d)
	return &resp, nil
}

// Login authenticates a driver by phone and password
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	p, err := valueobject.NewPhone(req.Phone)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	d, err := s.repo.FindByPhone(ctx, p.Local())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("driver login for unknown phone", logger.Masked("phone", p.Local()))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !d.VerifyPassword(req.Password) {
		s.logger.Warn("invalid driver password", zap.String("driver_id", d.ID.String()))
		return nil, ErrInvalidCredentials
	}
	return s.session(d)
}

// ExchangeLoginToken trades a one-shot driver_login token, as issued by
// the accept redirect, for a regular token pair
func (s *Service) ExchangeLoginToken(ctx context.Context, token string) (*LoginResponse, error) {
	claims, err := s.jwtService.ValidateDriverLoginToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, shared.NewDomainError("TOKEN_EXPIRED", "Login link has expired")
		}
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid login link")
	}
	if s.blacklist != nil && claims.ID != "" {
		first, err := s.blacklist.Consume(ctx, claims.ID, claims.Remaining())
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, ErrLoginTokenUsed
		}
	}
	driverID, err := claims.SubjectID()
	if err != nil {
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid login link")
	}
	d, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return s.session(d)
}

func (s *Service) session(d *driver.Driver) (*LoginResponse, error) {
	pair, err := s.jwtService.GenerateTokenPair(auth.Subject{UserID: d.ID, Role: auth.RoleDriver, Name: d.Name})
	if err != nil {
		s.logger.Error("generate driver tokens", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}
	s.logger.Info("driver logged in", zap.String("driver_id", d.ID.String()))
	return &LoginResponse{TokenPair: pair, Driver: ToDriverResponse(d)}, nil
}
