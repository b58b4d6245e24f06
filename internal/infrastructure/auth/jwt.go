package auth

import (
	"errors"
	"time"

	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes what a token may be used for
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypeDriverLogin is the one-shot token carried by the accept redirect
	TokenTypeDriverLogin TokenType = "driver_login"
)

// Role is the kind of principal a token was issued to
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDriver   Role = "driver"
	RoleCustomer Role = "customer"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleCustomer:
		return true
	}
	return false
}

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrTokenBlacklisted = errors.New("token has been revoked")
)

// clockSkew tolerated on exp, nbf and iat
const clockSkew = 30 * time.Second

// Claims is the payload of every token the service issues
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Name      string    `json:"name,omitempty"`
	TokenType TokenType `json:"token_type"`
}

// SubjectID parses UserID
func (c *Claims) SubjectID() (uuid.UUID, error) { return uuid.Parse(c.UserID) }

// IssuedAtTime returns iat, or the zero time when absent
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Remaining is the time left until exp, never negative. Revocation entries
// for the token only need to live this long.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

// TokenPair is returned by login and refresh
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// Subject identifies who a token is issued to
type Subject struct {
	UserID uuid.UUID
	Role   Role
	Name   string
}

// JWTService signs and verifies HS256 tokens. Access and driver_login
// tokens share the access secret; refresh tokens use their own secret
// when one is configured.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	loginTTL      time.Duration
	issuer        string
	parser        *jwt.Parser
}

// NewJWTService builds the service. loginTTL is the lifetime of
// driver_login tokens and defaults to ten minutes.
func NewJWTService(cfg config.JWTConfig, loginTTL time.Duration) *JWTService {
	s := &JWTService{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenExpiration,
		refreshTTL:    cfg.RefreshTokenExpiration,
		loginTTL:      loginTTL,
		issuer:        cfg.Issuer,
	}
	if cfg.RefreshSecret == "" {
		s.refreshSecret = s.accessSecret
	}
	if s.loginTTL <= 0 {
		s.loginTTL = 10 * time.Minute
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.issuer))
	}
	s.parser = jwt.NewParser(opts...)
	return s
}

// RefreshTTL is the refresh token lifetime, the longest any issued token lives
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateTokenPair issues an access and a refresh token for sub
func (s *JWTService) GenerateTokenPair(sub Subject) (*TokenPair, error) {
	if sub.UserID == uuid.Nil || !sub.Role.IsValid() {
		return nil, ErrInvalidClaims
	}
	now := time.Now()

	access, err := s.sign(s.claims(sub, TokenTypeAccess, now, s.accessTTL), s.accessSecret)
	if err != nil {
		return nil, err
	}
	// refresh tokens carry no display name
	sub.Name = ""
	refresh, err := s.sign(s.claims(sub, TokenTypeRefresh, now, s.refreshTTL), s.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  now.Add(s.accessTTL),
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		TokenType:             "Bearer",
	}, nil
}

// GenerateDriverLoginToken issues the short-lived token used by the driver
// app auto-login after an accept link was followed
func (s *JWTService) GenerateDriverLoginToken(driverID uuid.UUID, name string) (string, error) {
	if driverID == uuid.Nil {
		return "", ErrInvalidClaims
	}
	sub := Subject{UserID: driverID, Role: RoleDriver, Name: name}
	return s.sign(s.claims(sub, TokenTypeDriverLogin, time.Now(), s.loginTTL), s.accessSecret)
}

// RefreshTokenPair issues a new pair from a valid refresh token. name is
// the principal's current display name.
func (s *JWTService) RefreshTokenPair(refreshToken, name string) (*TokenPair, *Claims, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	userID, err := claims.SubjectID()
	if err != nil {
		return nil, nil, ErrInvalidClaims
	}
	pair, err := s.GenerateTokenPair(Subject{UserID: userID, Role: claims.Role, Name: name})
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}

func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.verify(token, s.accessSecret, TokenTypeAccess)
}

func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.verify(token, s.refreshSecret, TokenTypeRefresh)
}

// ValidateDriverLoginToken accepts only driver_login tokens issued to a driver
func (s *JWTService) ValidateDriverLoginToken(token string) (*Claims, error) {
	claims, err := s.verify(token, s.accessSecret, TokenTypeDriverLogin)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleDriver {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

func (s *JWTService) claims(sub Subject, typ TokenType, now time.Time, ttl time.Duration) *Claims {
	c := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sub.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:    sub.UserID.String(),
		Role:      sub.Role,
		Name:      sub.Name,
		TokenType: typ,
	}
	if s.issuer != "" {
		c.Audience = jwt.ClaimStrings{s.issuer}
	}
	return c
}

func (s *JWTService) sign(claims *Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verify checks signature, algorithm, time claims and issuer, then the
// token type and principal
func (s *JWTService) verify(raw string, secret []byte, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil })
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return nil, ErrTokenNotYetValid
	case err != nil:
		return nil, ErrInvalidToken
	}

	if claims.TokenType != want {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	if !claims.Role.IsValid() {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
