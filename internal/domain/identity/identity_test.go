package identity

import (
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdminUser(t *testing.T) {
	u, err := NewAdminUser(" Admin ", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	assert.True(t, u.Active)
	assert.True(t, u.VerifyPassword("supersecret"))
	assert.False(t, u.VerifyPassword("wrong"))

	_, err = NewAdminUser("a", "supersecret")
	assert.Error(t, err)
	_, err = NewAdminUser("admin", "short")
	assert.Error(t, err)
}

func TestCustomer_Addresses(t *testing.T) {
	c, err := NewCustomer("22123456", "Amine")
	require.NoError(t, err)

	home, err := c.AddAddress("Home", "Rue 1", nil, false)
	require.NoError(t, err)
	assert.True(t, home.IsDefault)

	work, err := c.AddAddress("Work", "Rue 2", nil, true)
	require.NoError(t, err)
	assert.True(t, work.IsDefault)
	assert.Equal(t, work.ID, c.DefaultAddress().ID)

	require.NoError(t, c.RemoveAddress(work.ID))
	require.NotNil(t, c.DefaultAddress())
	assert.Equal(t, home.ID, c.DefaultAddress().ID)

	_, err = c.UpdateAddress(uuid.New(), "x", "y", nil, false)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = c.AddAddress("Empty", " ", nil, false)
	assert.Error(t, err)
}

func TestOTPCode_Verify(t *testing.T) {
	otp, code, err := NewOTPCode("+216 22 123 456", 5*time.Minute)
	require.NoError(t, err)
	assert.Len(t, code, OTPLength)
	assert.Equal(t, "22123456", otp.Phone)
	assert.NotEqual(t, code, otp.CodeHash)

	now := time.Now()
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	assert.ErrorIs(t, otp.Verify(wrong, now), ErrOTPInvalid)
	require.NoError(t, otp.Verify(code, now))
	assert.ErrorIs(t, otp.Verify(code, now), ErrOTPInvalid)
	assert.False(t, otp.IsActive(now))
}

func TestOTPCode_ExpiryAndAttempts(t *testing.T) {
	otp, code, err := NewOTPCode("22123456", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, otp.Verify(code, time.Now().Add(2*time.Minute)), ErrOTPInvalid)

	otp, code, err = NewOTPCode("22123456", time.Minute)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < OTPMaxAttempts; i++ {
		assert.ErrorIs(t, otp.Verify(wrong, time.Now()), ErrOTPInvalid)
	}
	assert.ErrorIs(t, otp.Verify(code, time.Now()), ErrOTPTooManyAttempts)
}
