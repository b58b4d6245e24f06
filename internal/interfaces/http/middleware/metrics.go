package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/delivery/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var responseSizeBuckets = []float64{100, 500, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6}

type serverInstruments struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newServerInstruments(meter metric.Meter) (*serverInstruments, error) {
	requests, err1 := telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}")
	latency, err2 := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	size, err3 := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	})
	inFlight, err4 := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return nil, err
	}
	return &serverInstruments{requests: requests, latency: latency, size: size, inFlight: inFlight}, nil
}

// observe records one finished request. The request counter also carries
// the status and the caller's role; latency and size only method and route.
func (s *serverInstruments) observe(ctx context.Context, c *gin.Context, elapsed time.Duration) {
	route := telemetry.AttrHTTPRoute.String(routePattern(c))
	method := telemetry.AttrHTTPMethod.String(c.Request.Method)

	counted := []attribute.KeyValue{method, route, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())}
	if role := GetJWTRole(c); role != "" {
		counted = append(counted, telemetry.AttrUserRole.String(string(role)))
	}
	s.requests.Inc(ctx, counted...)
	s.latency.RecordDuration(ctx, elapsed, method, route)
	if n := c.Writer.Size(); n > 0 {
		s.size.Record(ctx, float64(n), method, route)
	}
}

// HTTPMetrics records request count, latency, response size and in-flight
// requests. A nil meter, or one that rejects the instruments, disables it.
func HTTPMetrics(meter metric.Meter) gin.HandlerFunc {
	var s *serverInstruments
	if meter != nil {
		s, _ = newServerInstruments(meter)
	}
	if s == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		s.inFlight.Add(ctx, 1)
		defer s.inFlight.Add(ctx, -1)

		c.Next()
		s.observe(ctx, c, time.Since(start))
	}
}

// routePattern uses the route template to keep label cardinality bounded
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
