package dispatch

import (
	"context"
	"fmt"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderCreatedHandler starts dispatch for every new order
type OrderCreatedHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewOrderCreatedHandler creates the handler
func NewOrderCreatedHandler(service *Service, logger *zap.Logger) *OrderCreatedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCreatedHandler{service: service, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderCreatedHandler) EventTypes() []string {
	return []string{order.EventTypeOrderCreated}
}

// Handle implements shared.EventHandler
func (h *OrderCreatedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*order.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	res, err := h.service.Start(ctx, created.OrderID)
	if err != nil {
		return fmt.Errorf("dispatch order %s: %w", created.OrderID, err)
	}
	if res.Exhausted {
		h.logger.Warn("order created with no driver available", zap.String("order_id", created.OrderID.String()))
	}
	return nil
}

var _ shared.EventHandler = (*OrderCreatedHandler)(nil)
