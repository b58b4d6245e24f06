package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultMarkerTTL is how long a handled event id is remembered
const DefaultMarkerTTL = 24 * time.Hour

// DedupStats counts how a deduplicating handler resolved its deliveries
type DedupStats struct {
	Processed  int64 `json:"processed"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event id.
// A failed run releases its claim so a redelivery retries it. With a nil
// store every delivery goes straight through.
type IdempotentHandler struct {
	next   shared.EventHandler
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger

	processed, duplicates, failed atomic.Int64
}

// IdempotentOption configures an IdempotentHandler
type IdempotentOption func(*IdempotentHandler)

// WithMarkerTTL overrides DefaultMarkerTTL. Non-positive values are ignored.
func WithMarkerTTL(ttl time.Duration) IdempotentOption {
	return func(h *IdempotentHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// NewIdempotentHandler wraps next with event-level deduplication
func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{next: next, store: store, ttl: DefaultMarkerTTL, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes forwards to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string { return h.next.EventTypes() }

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.store == nil {
		return h.run(ctx, event, nil)
	}

	id := event.EventID().String()
	log := h.logger.With(zap.String("event_id", id), zap.String("event_type", event.EventType()))

	fresh, err := h.store.MarkProcessed(ctx, id, h.ttl)
	if err != nil {
		// processing twice beats never processing
		log.Warn("Idempotency store unavailable, handling event unguarded", zap.Error(err))
		return h.run(ctx, event, log)
	}
	if !fresh {
		h.duplicates.Add(1)
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.run(ctx, event, log); err != nil {
		if relErr := h.store.Release(ctx, id); relErr != nil {
			log.Warn("Failed to release idempotency marker", zap.Error(relErr))
		}
		return err
	}
	return nil
}

func (h *IdempotentHandler) run(ctx context.Context, event shared.DomainEvent, log *zap.Logger) error {
	if err := h.next.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		if log != nil {
			log.Error("Event handler failed", zap.Error(err))
		}
		return err
	}
	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the counters
func (h *IdempotentHandler) Stats() DedupStats {
	return DedupStats{
		Processed:  h.processed.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
