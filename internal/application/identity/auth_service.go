package identity

import (
	"context"
	"errors"
	"time"

	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for a wrong username or password
var ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid username or password")

// AuthService handles admin login and token refresh for every role
type AuthService struct {
	admins     identity.AdminUserRepository
	drivers    driver.DriverRepository
	customers  identity.CustomerRepository
	jwtService *auth.JWTService
	blacklist  auth.TokenBlacklist
	logger     *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	admins identity.AdminUserRepository,
	drivers driver.DriverRepository,
	customers identity.CustomerRepository,
	jwtService *auth.JWTService,
	blacklist auth.TokenBlacklist,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		admins:     admins,
		drivers:    drivers,
		customers:  customers,
		jwtService: jwtService,
		blacklist:  blacklist,
		logger:     logger,
	}
}

// EnsureBootstrapAdmin creates the configured admin when no admin exists.
// It returns true when an admin was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	count, err := s.admins.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	admin, err := identity.NewAdminUser(username, password)
	if err != nil {
		return false, err
	}
	if err := s.admins.Save(ctx, admin); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("Bootstrap admin created", zap.String("username", admin.Username))
	return true, nil
}

// Login authenticates an admin and returns tokens
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	s.logger.Info("Login attempt", zap.String("username", input.Username))

	admin, err := s.admins.FindByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("User not found during login", zap.String("username", input.Username))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !admin.Active {
		s.logger.Warn("Login attempt for deactivated account", zap.String("username", input.Username))
		return nil, shared.NewDomainError("ACCOUNT_DEACTIVATED", "Account has been deactivated")
	}
	if !admin.VerifyPassword(input.Password) {
		s.logger.Warn("Invalid password attempt", zap.String("username", input.Username))
		return nil, ErrInvalidCredentials
	}

	sub := auth.Subject{UserID: admin.ID, Role: auth.RoleAdmin, Name: admin.Username}
	pair, err := s.jwtService.GenerateTokenPair(sub)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	admin.RecordLogin(time.Now())
	if err := s.admins.Save(ctx, admin); err != nil {
		// the session is valid even if the timestamp is lost
		s.logger.Error("Failed to update user after successful login", zap.Error(err))
	}

	s.logger.Info("User logged in successfully",
		zap.String("username", admin.Username),
		zap.String("user_id", admin.ID.String()))

	return &LoginResult{
		TokenPair: pair,
		User:      PrincipalInfo{ID: admin.ID, Role: auth.RoleAdmin, Name: admin.Username},
	}, nil
}

// RefreshToken issues a new pair for a valid refresh token. The old
// refresh token cannot be used again.
func (s *AuthService) RefreshToken(ctx context.Context, input RefreshTokenInput) (*LoginResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		s.logger.Warn("Refresh token validation failed", zap.Error(err))
		return nil, tokenError(err)
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid user ID in token")
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.SubjectRevoked(ctx, claims.UserID, claims.IssuedAtTime())
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, shared.NewDomainError("TOKEN_REVOKED", "Session has been revoked")
		}
		first, err := s.blacklist.Consume(ctx, claims.ID, claims.Remaining())
		if err != nil {
			return nil, err
		}
		if !first {
			s.logger.Warn("Refresh token reused", zap.String("user_id", claims.UserID))
			return nil, shared.NewDomainError("TOKEN_REVOKED", "Refresh token was already used")
		}
	}

	name, err := s.principalName(ctx, claims.Role, userID)
	if err != nil {
		return nil, err
	}
	pair, _, err := s.jwtService.RefreshTokenPair(input.RefreshToken, name)
	if err != nil {
		return nil, tokenError(err)
	}

	s.logger.Info("Token refreshed successfully",
		zap.String("user_id", userID.String()),
		zap.String("role", string(claims.Role)))
	return &LoginResult{
		TokenPair: pair,
		User:      PrincipalInfo{ID: userID, Role: claims.Role, Name: name},
	}, nil
}

// Logout revokes the current access token and, when given, the refresh token
func (s *AuthService) Logout(ctx context.Context, input LogoutInput) error {
	if s.blacklist == nil {
		return nil
	}
	if input.AccessJTI != "" && input.AccessRemaining > 0 {
		if err := s.blacklist.Revoke(ctx, input.AccessJTI, input.AccessRemaining); err != nil {
			return err
		}
	}
	if input.RefreshToken != "" {
		claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
		if err == nil {
			if err := s.blacklist.Revoke(ctx, claims.ID, claims.Remaining()); err != nil {
				return err
			}
		}
	}
	return nil
}

// principalName loads the principal behind a token to confirm it still
// exists and returns its display name
func (s *AuthService) principalName(ctx context.Context, role auth.Role, id uuid.UUID) (string, error) {
	notFound := shared.NewDomainError("USER_NOT_FOUND", "User not found")
	switch role {
	case auth.RoleAdmin:
		admin, err := s.admins.FindByID(ctx, id)
		if err != nil {
			return "", notFound
		}
		if !admin.Active {
			return "", shared.NewDomainError("ACCOUNT_INACTIVE", "Account is no longer active")
		}
		return admin.Username, nil
	case auth.RoleDriver:
		d, err := s.drivers.FindByID(ctx, id)
		if err != nil {
			return "", notFound
		}
		return d.Name, nil
	case auth.RoleCustomer:
		c, err := s.customers.FindByID(ctx, id)
		if err != nil {
			return "", notFound
		}
		return c.Name, nil
	}
	return "", shared.NewDomainError("TOKEN_INVALID", "Invalid token role")
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return shared.NewDomainError("TOKEN_EXPIRED", "Refresh token has expired")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidTokenType):
		return shared.NewDomainError("TOKEN_INVALID", "Invalid refresh token")
	default:
		return shared.NewDomainError("TOKEN_ERROR", "Failed to validate refresh token")
	}
}
