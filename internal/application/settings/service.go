package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/settings"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache holds recently read settings. Implementations never return errors;
// a failing cache reads as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*settings.Setting, bool)
	Set(ctx context.Context, s *settings.Setting)
	Invalidate(ctx context.Context, key string)
}

// SettingResponse is a setting in API responses
type SettingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Service reads and writes key/value settings
type Service struct {
	repo   settings.Repository
	cache  Cache
	logger *zap.Logger
}

// NewService creates a settings service. cache may be nil.
func NewService(repo settings.Repository, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Get returns one setting
func (s *Service) Get(ctx context.Context, key string) (*SettingResponse, error) {
	st, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return toResponse(st), nil
}

// List returns every stored setting
func (s *Service) List(ctx context.Context) ([]SettingResponse, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SettingResponse, len(rows))
	for i := range rows {
		out[i] = *toResponse(&rows[i])
	}
	return out, nil
}

// Set validates and stores a setting
func (s *Service) Set(ctx context.Context, key string, value json.RawMessage) (*SettingResponse, error) {
	if err := validateKnown(key, value); err != nil {
		return nil, err
	}
	st, err := settings.NewSetting(key, value)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, key)
	}
	s.logger.Info("setting updated", zap.String("key", key))
	return toResponse(st), nil
}

// DeliveryFee returns the configured delivery fee, zero when unset
func (s *Service) DeliveryFee(ctx context.Context) (decimal.Decimal, error) {
	st, err := s.load(ctx, settings.KeyDeliveryFee)
	if errors.Is(err, shared.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return parseDecimal(st.Value)
}

// DispatchTimeout returns the offer timeout, or fallback when unset or invalid
func (s *Service) DispatchTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	st, err := s.load(ctx, settings.KeyDispatchTimeoutSeconds)
	if err != nil {
		return fallback
	}
	secs, err := parseInt(st.Value)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

func (s *Service) load(ctx context.Context, key string) (*settings.Setting, error) {
	if s.cache != nil {
		if st, ok := s.cache.Get(ctx, key); ok {
			return st, nil
		}
	}
	st, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, st)
	}
	return st, nil
}

func validateKnown(key string, value json.RawMessage) error {
	switch key {
	case settings.KeyDeliveryFee:
		fee, err := parseDecimal(value)
		if err != nil || fee.IsNegative() {
			return shared.NewDomainError("INVALID_SETTING_VALUE", "delivery_fee must be a non-negative amount")
		}
	case settings.KeyDispatchTimeoutSeconds:
		secs, err := parseInt(value)
		if err != nil || secs < 10 || secs > 3600 {
			return shared.NewDomainError("INVALID_SETTING_VALUE", "dispatch_timeout_seconds must be between 10 and 3600")
		}
	case settings.KeyStoreAnnouncement:
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return shared.NewDomainError("INVALID_SETTING_VALUE", "store_announcement must be a string")
		}
	}
	return nil
}

// parseDecimal accepts both "2.500" and 2.5
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return decimal.NewFromString(strings.TrimSpace(text))
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func parseInt(raw json.RawMessage) (int64, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	}
	var n int64
	err := json.Unmarshal(raw, &n)
	return n, err
}

func toResponse(s *settings.Setting) *SettingResponse {
	return &SettingResponse{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt}
}
