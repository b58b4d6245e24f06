package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ginLoggerKey = "logger"

// AccessOption tunes the access log middleware
type AccessOption func(*accessLog)

type accessLog struct {
	skip       map[string]bool
	skipPrefix []string
}

// SkipPaths drops access entries for successful requests on the given
// routes, like /health polled by the load balancer. Entries ending in "*"
// match by prefix.
func SkipPaths(paths ...string) AccessOption {
	return func(a *accessLog) {
		for _, p := range paths {
			if strings.HasSuffix(p, "*") {
				a.skipPrefix = append(a.skipPrefix, strings.TrimSuffix(p, "*"))
				continue
			}
			a.skip[p] = true
		}
	}
}

func (a *accessLog) skipped(path string) bool {
	if a.skip[path] {
		return true
	}
	for _, p := range a.skipPrefix {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// GinMiddleware writes one access entry per request and makes a request
// scoped logger available to handlers (GetGinLogger) and to services
// (FromContext). It expects the request id middleware to run first.
func GinMiddleware(base *zap.Logger, opts ...AccessOption) gin.HandlerFunc {
	cfg := &accessLog{skip: map[string]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLog := Traced(c.Request.Context(), base).With(
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		ctx, reqLog := WithRequestID(c.Request.Context(), reqLog, c.GetString("request_id"))
		ctx = WithContext(ctx, reqLog)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ginLoggerKey, reqLog)

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest && cfg.skipped(path) {
			return
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" && route != path {
			fields = append(fields, zap.String("route", route))
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		// role and user_id are only known after the JWT middleware ran
		if role := c.GetString("role"); role != "" {
			fields = append(fields, zap.String("role", role))
		}
		if uid := GetUserID(c.Request.Context()); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		if ce := reqLog.Check(accessLevel(status), "HTTP Request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// Recovery turns a handler panic into a logged 500 with the API error
// envelope. Later middleware and handlers are skipped.
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			requestID := c.GetString("request_id")
			base.Error("Panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			body := gin.H{"code": "INTERNAL_ERROR", "message": "An internal error occurred"}
			if requestID != "" {
				body["request_id"] = requestID
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": body})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger set by GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
