package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/domain", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("checkout: %w", shared.NewDomainError("MIN_ORDER_NOT_REACHED", "Minimum order is 15 TND")))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused"))
	})
	r.GET("/written", func(c *gin.Context) {
		_ = c.Error(errors.New("ignored"))
		c.Status(http.StatusAccepted)
	})

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/domain", http.StatusUnprocessableEntity, dto.ErrCodeMinOrderNotReached},
		{"/plain", http.StatusInternalServerError, dto.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestErrorResponse_NotFoundSentinel(t *testing.T) {
	status, body := ErrorResponse(fmt.Errorf("find order: %w", shared.ErrNotFound), "req-9")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "req-9", body.Error.RequestID)
}
