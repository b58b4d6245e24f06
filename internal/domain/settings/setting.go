package settings

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
)

// Known setting keys
const (
	KeyDeliveryFee            = "delivery_fee"
	KeyDispatchTimeoutSeconds = "dispatch_timeout_seconds"
	KeyStoreAnnouncement      = "store_announcement"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Setting is a key with a JSON-encoded value
type Setting struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

// NewSetting validates the key and that value is JSON
func NewSetting(key string, value json.RawMessage) (*Setting, error) {
	if !keyPattern.MatchString(key) {
		return nil, shared.NewDomainError("INVALID_SETTING_KEY", "Setting key must be lowercase snake_case")
	}
	if !json.Valid(value) {
		return nil, shared.NewDomainError("INVALID_SETTING_VALUE", "Setting value must be valid JSON")
	}
	return &Setting{Key: key, Value: value, UpdatedAt: time.Now()}, nil
}

// Repository persists settings
type Repository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	List(ctx context.Context) ([]Setting, error)
	Upsert(ctx context.Context, s *Setting) error
}
