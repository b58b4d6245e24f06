package middleware

import (
	"net/http"

	"github.com/delivery/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit caps request bodies at limit bytes; zero or less disables it.
// A declared Content-Length over the cap is refused before the handler
// runs. Bodies of unknown length fail while being read, and ErrorResponse
// turns that failure into the same 413.
func BodyLimit(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength <= limit {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
			return
		}
		body := dto.NewErrorResponseWithRequestID(dto.ErrCodeTooLarge,
			"Request body exceeds maximum allowed size", getRequestIDFromContext(c))
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, body)
	}
}
