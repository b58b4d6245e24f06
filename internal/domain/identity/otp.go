package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// OTP defaults
const (
	OTPLength      = 6
	OTPMaxAttempts = 5
)

var (
	// ErrOTPInvalid is returned for a wrong, expired or consumed code
	ErrOTPInvalid = shared.NewDomainError("OTP_INVALID", "Invalid or expired code")

	// ErrOTPTooManyAttempts is returned once the attempt budget is spent
	ErrOTPTooManyAttempts = shared.NewDomainError("OTP_TOO_MANY_ATTEMPTS", "Too many attempts, request a new code")

	// ErrOTPTooFrequent is returned when a new code is requested too soon
	ErrOTPTooFrequent = shared.NewDomainError("OTP_TOO_FREQUENT", "A code was sent recently, please wait")
)

// OTPCode is a one-time login code sent by SMS. Only its hash is stored.
type OTPCode struct {
	ID         uuid.UUID
	Phone      string
	CodeHash   string
	ExpiresAt  time.Time
	Attempts   int
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// NewOTPCode generates a random numeric code for the phone. The plaintext
// code is returned once for delivery.
func NewOTPCode(phone string, ttl time.Duration) (*OTPCode, string, error) {
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return nil, "", shared.NewDomainError("INVALID_PHONE", "Invalid phone length")
	}
	code, err := randomDigits(OTPLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate otp: %w", err)
	}
	now := time.Now()
	return &OTPCode{
		ID:        uuid.New(),
		Phone:     p.Local(),
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, code, nil
}

// Verify checks a submitted code and consumes it on success. Every call
// counts as an attempt.
func (o *OTPCode) Verify(code string, now time.Time) error {
	if o.ConsumedAt != nil || !now.Before(o.ExpiresAt) {
		return ErrOTPInvalid
	}
	if o.Attempts >= OTPMaxAttempts {
		return ErrOTPTooManyAttempts
	}
	o.Attempts++
	if subtle.ConstantTimeCompare([]byte(o.CodeHash), []byte(hashCode(code))) != 1 {
		return ErrOTPInvalid
	}
	o.ConsumedAt = &now
	return nil
}

// IsActive reports whether the code can still be used
func (o *OTPCode) IsActive(now time.Time) bool {
	return o.ConsumedAt == nil && now.Before(o.ExpiresAt) && o.Attempts < OTPMaxAttempts
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func randomDigits(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b[i] = byte('0' + d.Int64())
	}
	return string(b), nil
}
