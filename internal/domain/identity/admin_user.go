package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// Password cost for bcrypt
const bcryptCost = 12

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,49}$`)

// AdminUser is a dashboard operator
type AdminUser struct {
	shared.BaseAggregateRoot
	Username     string
	PasswordHash string
	Active       bool
	LastLoginAt  *time.Time
}

// NewAdminUser creates an active admin with a hashed password
func NewAdminUser(username, password string) (*AdminUser, error) {
	u := strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(u) {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	return &AdminUser{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          u,
		PasswordHash:      hash,
		Active:            true,
	}, nil
}

// VerifyPassword checks a plaintext password against the stored hash
func (a *AdminUser) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// RecordLogin stamps the last login time
func (a *AdminUser) RecordLogin(at time.Time) {
	a.LastLoginAt = &at
	a.Touch()
}

// Deactivate blocks further logins
func (a *AdminUser) Deactivate() {
	a.Active = false
	a.Touch()
}

func hashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return "", shared.NewDomainError("INVALID_PASSWORD", "Password cannot exceed 72 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	return string(hash), nil
}
