// Package middleware provides HTTP middleware for the delivery API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request through otelgin. Spans are named
// after the route template ("GET /api/v1/orders/:id"). Requests whose path
// is listed in skipPaths are not traced.
func Tracing(service string, skipPaths ...string) gin.HandlerFunc {
	var opts []otelgin.Option
	if len(skipPaths) > 0 {
		skip := make(map[string]struct{}, len(skipPaths))
		for _, p := range skipPaths {
			skip[p] = struct{}{}
		}
		opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
			_, skipped := skip[r.URL.Path]
			return !skipped
		}))
	}
	return otelgin.Middleware(service, opts...)
}

// SpanAnnotator decorates the request span after the rest of the chain has
// run, so the principal set by the JWT middleware further down is visible.
// 4xx responses are marked as errors too; otelgin only flags 5xx.
// Place it directly after Tracing.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		attrs := make([]attribute.KeyValue, 0, 3)
		if id := getRequestIDFromContext(c); id != "" {
			attrs = append(attrs, attribute.String("request_id", id))
		}
		if uid := GetJWTUserID(c); uid != "" {
			attrs = append(attrs, attribute.String("user_id", uid))
		}
		if role := GetJWTRole(c); role != "" {
			attrs = append(attrs, attribute.String("user_role", string(role)))
		}
		span.SetAttributes(attrs...)

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
