package valueobject

import (
	"errors"
	"strings"
)

// CountryCode is the international dialling prefix for local numbers.
const CountryCode = "216"

// LocalPhoneLength is the number of digits of a local subscriber number.
const LocalPhoneLength = 8

// ErrInvalidPhoneLength is returned when a phone number has the wrong digit count
var ErrInvalidPhoneLength = errors.New("invalid phone length")

// Phone is a normalized phone number holding the local 8-digit form.
type Phone struct {
	local string
}

// NewPhone normalizes raw input. Spaces, dashes, dots, parentheses and a
// leading '+' or "00" are ignored. Accepted forms are the 8-digit local
// number or the same number prefixed with the country code.
func NewPhone(raw string) (Phone, error) {
	digits := Digits(raw)
	digits = strings.TrimPrefix(digits, "00")
	switch {
	case len(digits) == LocalPhoneLength:
		return Phone{local: digits}, nil
	case len(digits) == len(CountryCode)+LocalPhoneLength && strings.HasPrefix(digits, CountryCode):
		return Phone{local: digits[len(CountryCode):]}, nil
	default:
		return Phone{}, ErrInvalidPhoneLength
	}
}

// Digits strips everything but ASCII digits from s
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Local returns the 8-digit local number
func (p Phone) Local() string {
	return p.local
}

// E164 returns the number in +216XXXXXXXX form
func (p Phone) E164() string {
	if p.local == "" {
		return ""
	}
	return "+" + CountryCode + p.local
}

// IsZero reports whether the phone is unset
func (p Phone) IsZero() bool {
	return p.local == ""
}

// String returns the local form
func (p Phone) String() string {
	return p.local
}
