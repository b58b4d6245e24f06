package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	userIDKey
	roleKey
)

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the request id in ctx and on the returned logger
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return annotate(ctx, l, requestIDKey, "request_id", requestID)
}

// WithUserID records the authenticated subject (admin, driver or customer id)
func WithUserID(ctx context.Context, l *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return annotate(ctx, l, userIDKey, "user_id", userID)
}

// WithRole records the caller role
func WithRole(ctx context.Context, l *zap.Logger, role string) (context.Context, *zap.Logger) {
	return annotate(ctx, l, roleKey, "role", role)
}

// GetRequestID returns the request id recorded in ctx
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// GetUserID returns the subject recorded in ctx
func GetUserID(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// GetRole returns the role recorded in ctx
func GetRole(ctx context.Context) string { return stringValue(ctx, roleKey) }

// Traced adds trace_id and span_id from the active span in ctx. l is
// returned as is when there is no valid span.
func Traced(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func annotate(ctx context.Context, l *zap.Logger, key ctxKey, field, value string) (context.Context, *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	if value == "" {
		return ctx, l
	}
	l = l.With(zap.String(field, value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, l), l
}

func stringValue(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}
