package driver

import (
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"golang.org/x/crypto/bcrypt"
)

// Status represents the availability of a driver
type Status string

const (
	StatusAvailable  Status = "available"
	StatusOnDelivery Status = "on_delivery"
	StatusOffline    Status = "offline"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusOnDelivery, StatusOffline:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status.
// A driver on delivery must finish it before going offline.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusAvailable:
		return target == StatusOnDelivery || target == StatusOffline
	case StatusOnDelivery:
		return target == StatusAvailable
	case StatusOffline:
		return target == StatusAvailable
	}
	return false
}

// Password cost for bcrypt
const bcryptCost = 12

// Driver is a courier that receives order offers
type Driver struct {
	shared.BaseAggregateRoot
	Name          string
	Phone         string
	PasswordHash  string
	Status        Status
	TelegramID    string
	LastOfferedAt *time.Time
}

// NewDriver creates an offline driver with a hashed password
func NewDriver(name, phone, password string) (*Driver, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PHONE", "Driver phone must have 8 digits")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Driver{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		Phone:             p.Local(),
		PasswordHash:      hash,
		Status:            StatusOffline,
	}, nil
}

// Update replaces name and phone
func (d *Driver) Update(name, phone string) error {
	if err := validateName(name); err != nil {
		return err
	}
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return shared.NewDomainError("INVALID_PHONE", "Driver phone must have 8 digits")
	}
	d.Name = strings.TrimSpace(name)
	d.Phone = p.Local()
	d.Touch()
	return nil
}

// ChangePassword replaces the password hash
func (d *Driver) ChangePassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	d.PasswordHash = hash
	d.Touch()
	return nil
}

// VerifyPassword checks a plaintext password against the stored hash
func (d *Driver) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) == nil
}

// SetStatus moves the driver to a new status
func (d *Driver) SetStatus(target Status) error {
	if !target.IsValid() {
		return shared.DomainErrorf("INVALID_STATUS", "Unknown driver status %q", target)
	}
	if d.Status == target {
		return nil
	}
	if !d.Status.CanTransitionTo(target) {
		return shared.DomainErrorf("INVALID_STATE", "Cannot move driver from %s to %s", d.Status, target)
	}
	d.Status = target
	d.Touch()
	return nil
}

// ErrTelegramAlreadyLinked is returned when a chat tries to claim a driver
// already bound to another chat
var ErrTelegramAlreadyLinked = shared.NewDomainError("TELEGRAM_ALREADY_LINKED", "Driver is already linked to another Telegram chat")

// LinkTelegram binds the chat offers are sent to. It is self-service from
// the bot, so it only fills an empty binding or repeats the current one;
// moving a driver to another chat goes through SetTelegram.
func (d *Driver) LinkTelegram(chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if d.TelegramID != "" && d.TelegramID != chatID {
		return ErrTelegramAlreadyLinked
	}
	return d.SetTelegram(chatID)
}

// SetTelegram replaces the chat binding unconditionally (admin edits)
func (d *Driver) SetTelegram(chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return shared.NewDomainError("INVALID_TELEGRAM_ID", "Telegram chat id cannot be empty")
	}
	if d.TelegramID == chatID {
		return nil
	}
	d.TelegramID = chatID
	d.Touch()
	return nil
}

// HasTelegram reports whether offers can be sent over Telegram
func (d *Driver) HasTelegram() bool {
	return d.TelegramID != ""
}

// IsAvailable reports whether the driver can receive offers
func (d *Driver) IsAvailable() bool {
	return d.Status == StatusAvailable
}

// HashPassword validates and bcrypt-hashes a password
func HashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 6 characters")
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

func validateName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return shared.NewDomainError("INVALID_NAME", "Driver name cannot be empty")
	}
	if len([]rune(n)) > 100 {
		return shared.NewDomainError("INVALID_NAME", "Driver name cannot exceed 100 characters")
	}
	return nil
}
