package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// OTPConfig contains configuration for customer OTP login
type OTPConfig struct {
	TTL            time.Duration // lifetime of a code
	ResendInterval time.Duration // minimum delay between two codes for a phone
}

// DefaultOTPConfig returns default configuration
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		TTL:            5 * time.Minute,
		ResendInterval: 60 * time.Second,
	}
}

// OTPService handles customer login by SMS code
type OTPService struct {
	otps       identity.OTPRepository
	customers  identity.CustomerRepository
	sms        dispatch.SMSSender
	jwtService *auth.JWTService
	config     OTPConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewOTPService creates a new OTP service
func NewOTPService(
	otps identity.OTPRepository,
	customers identity.CustomerRepository,
	sms dispatch.SMSSender,
	jwtService *auth.JWTService,
	config OTPConfig,
	logger *zap.Logger,
) *OTPService {
	defaults := DefaultOTPConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.ResendInterval <= 0 {
		config.ResendInterval = defaults.ResendInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		otps:       otps,
		customers:  customers,
		sms:        sms,
		jwtService: jwtService,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// RequestOTP sends a new code to the phone. A phone with a live code sent
// less than ResendInterval ago gets ErrOTPTooFrequent.
func (s *OTPService) RequestOTP(ctx context.Context, input OTPRequestInput) (*OTPRequestResult, error) {
	phone, err := valueobject.NewPhone(input.Phone)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "invalid phone length")
	}
	now := s.now()

	latest, err := s.otps.FindLatest(ctx, phone.Local())
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if latest != nil && latest.IsActive(now) && now.Sub(latest.CreatedAt) < s.config.ResendInterval {
		return nil, identity.ErrOTPTooFrequent
	}

	otp, code, err := identity.NewOTPCode(phone.Local(), s.config.TTL)
	if err != nil {
		return nil, err
	}
	if err := s.otps.Save(ctx, otp); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Your login code is %s. It expires in %d minutes.", code, int(s.config.TTL.Minutes()))
	if err := s.sms.Send(ctx, phone.E164(), text); err != nil {
		s.logger.Error("Failed to send OTP", logger.Masked("phone", phone.Local()), zap.Error(err))
		return nil, shared.NewDomainError("SMS_UNAVAILABLE", "Could not send the code, try again later")
	}

	s.logger.Info("OTP sent", logger.Masked("phone", phone.Local()))
	return &OTPRequestResult{
		ExpiresAt:   otp.ExpiresAt,
		RetryAfterS: int(s.config.ResendInterval.Seconds()),
	}, nil
}

// VerifyOTP checks a code, creates the customer on first login and
// returns a customer session
func (s *OTPService) VerifyOTP(ctx context.Context, input OTPVerifyInput) (*LoginResult, error) {
	phone, err := valueobject.NewPhone(input.Phone)
	if err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "invalid phone length")
	}

	otp, err := s.otps.FindLatest(ctx, phone.Local())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, identity.ErrOTPInvalid
		}
		return nil, err
	}
	verifyErr := otp.Verify(strings.TrimSpace(input.Code), s.now())
	// attempts are counted even when the code is wrong
	if err := s.otps.Save(ctx, otp); err != nil {
		return nil, err
	}
	if verifyErr != nil {
		s.logger.Warn("OTP verification failed",
			logger.Masked("phone", phone.Local()),
			zap.Int("attempts", otp.Attempts),
			zap.Error(verifyErr))
		return nil, verifyErr
	}

	customer, err := s.customers.FindByPhone(ctx, phone.Local())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		customer, err = identity.NewCustomer(phone.Local(), input.Name)
		if err != nil {
			return nil, err
		}
		if err := s.customers.Save(ctx, customer); err != nil {
			return nil, err
		}
		s.logger.Info("Customer registered", zap.String("customer_id", customer.ID.String()))
	case err != nil:
		return nil, err
	case input.Name != "" && customer.Name == "":
		customer.Rename(input.Name)
		if err := s.customers.Save(ctx, customer); err != nil {
			return nil, err
		}
	}

	sub := auth.Subject{UserID: customer.ID, Role: auth.RoleCustomer, Name: customer.Name}
	pair, err := s.jwtService.GenerateTokenPair(sub)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}
	return &LoginResult{
		TokenPair: pair,
		User:      PrincipalInfo{ID: customer.ID, Role: auth.RoleCustomer, Name: customer.Name},
	}, nil
}

// PurgeExpired deletes codes that expired before now
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.otps.DeleteExpired(ctx, s.now())
}
