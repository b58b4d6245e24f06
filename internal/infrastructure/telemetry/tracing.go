package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/delivery/backend"

// Attribute keys shared by service spans
const (
	AttrOrderID      = attribute.Key("order_id")
	AttrOrderStatus  = attribute.Key("order_status")
	AttrDriverID     = attribute.Key("driver_id")
	AttrRestaurantID = attribute.Key("restaurant_id")
	AttrPaymentID    = attribute.Key("payment_id")
	AttrChannel      = attribute.Key("dispatch.channel")
	AttrAmount       = attribute.Key("amount_millimes")
	AttrJob          = attribute.Key("job")
	AttrReplayed     = attribute.Key("idempotent_replay")
)

// StartServiceSpan starts an internal span named <service>.<operation>
// on the global tracer provider.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "accept",
//		telemetry.AttrOrderID.String(id.String()))
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, service+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span failed. A nil err leaves the span untouched, so
// it can run in a deferred func over a named error result.
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id active in ctx, or "" outside a trace
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
