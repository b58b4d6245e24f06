package logger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newAccessRouter(t *testing.T, opts ...AccessOption) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(GinMiddleware(zap.New(core), opts...))
	return r, recorded
}

func accessEntries(recorded *observer.ObservedLogs) []observer.LoggedEntry {
	return recorded.FilterMessage("HTTP Request").All()
}

func TestGinMiddleware_AccessEntry(t *testing.T) {
	r, recorded := newAccessRouter(t)
	r.GET("/api/v1/orders/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/17?track=1", nil)
	req.Header.Set("User-Agent", "driver-app/2.1")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries := accessEntries(recorded)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, zapcore.InfoLevel, e.Level)

	fields := e.ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/orders/17", fields["path"])
	assert.Equal(t, "/api/v1/orders/:id", fields["route"])
	assert.Equal(t, "track=1", fields["query"])
	assert.Equal(t, "driver-app/2.1", fields["user_agent"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.Contains(t, fields, "latency")
}

func TestGinMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{http.StatusCreated, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			r, recorded := newAccessRouter(t)
			r.POST("/checkout", func(c *gin.Context) { c.Status(tt.status) })

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/checkout", nil))

			entries := accessEntries(recorded)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.want, entries[0].Level)
		})
	}
}

func TestGinMiddleware_SkipPaths(t *testing.T) {
	r, recorded := newAccessRouter(t, SkipPaths("/health", "/uploads/*"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/uploads/*file", func(c *gin.Context) {
		if c.Param("file") == "/missing.png" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})
	r.GET("/api/v1/restaurants", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/uploads/logo.png", "/uploads/missing.png", "/api/v1/restaurants"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := accessEntries(recorded)
	require.Len(t, entries, 2, "skipped routes are still logged when they fail")
	assert.Equal(t, "/uploads/missing.png", entries[0].ContextMap()["path"])
	assert.Equal(t, "/api/v1/restaurants", entries[1].ContextMap()["path"])
}

func TestGinMiddleware_RequestLoggerReachesServices(t *testing.T) {
	r, recorded := newAccessRouter(t)
	r.GET("/drivers/me", func(c *gin.Context) {
		ctx, _ := WithUserID(c.Request.Context(), FromContext(c.Request.Context()), "driver-9")
		c.Request = c.Request.WithContext(ctx)
		c.Set("role", "driver")

		assert.Equal(t, "req-42", GetRequestID(ctx))
		FromContext(ctx).Info("driver profile loaded")
		GetGinLogger(c).Debug("handler entry")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/drivers/me", nil))

	svc := recorded.FilterMessage("driver profile loaded").All()
	require.Len(t, svc, 1)
	assert.Equal(t, "req-42", svc[0].ContextMap()["request_id"])
	assert.Equal(t, "driver-9", svc[0].ContextMap()["user_id"])

	require.Len(t, recorded.FilterMessage("handler entry").All(), 1)

	access := accessEntries(recorded)
	require.Len(t, access, 1)
	assert.Equal(t, "driver", access[0].ContextMap()["role"])
	assert.Equal(t, "driver-9", access[0].ContextMap()["user_id"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-panic")
		c.Next()
	})
	r.Use(Recovery(zap.New(core)))
	r.GET("/boom", func(*gin.Context) { panic("menu is nil") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Success bool              `json:"success"`
		Error   map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_ERROR", body.Error["code"])
	assert.Equal(t, "req-panic", body.Error["request_id"])

	entries := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "menu is nil", entries[0].ContextMap()["panic"])
}

func TestGetGinLogger_Unset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	l := GetGinLogger(c)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("dropped") })
}
