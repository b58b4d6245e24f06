package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delivery.log")

	log, err := New(&Config{Level: "debug", Format: "json", Output: path, Service: "delivery-api"})
	require.NoError(t, err)

	log.Debug("driver notified", zap.String("driver_id", "d-1"))
	log.Info("order placed", zap.String("order_id", "o-1"))
	require.NoError(t, Sync(log))

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "driver notified", entries[0]["msg"])
	assert.Equal(t, "o-1", entries[1]["order_id"])
	for _, e := range entries {
		assert.Equal(t, "delivery-api", e["service"])
		assert.NotEmpty(t, e["caller"])
	}
}

func TestNew_LevelFiltersEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")

	log, err := New(&Config{Level: "WARNING", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, Sync(log))

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.NotContains(t, entries[0], "service")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.ErrorContains(t, err, "open log output")
}

func TestNew_Defaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{" Info ", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMasked(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"12", "**"},
		{"22123456", "*****456"},
		{"98 765 432", "*******432"},
		{"Rue de l'Église", "************ise"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mask(tt.in), tt.in)
	}

	f := Masked("phone", "22123456")
	assert.Equal(t, "phone", f.Key)
	assert.Equal(t, "*****456", f.String)
}
