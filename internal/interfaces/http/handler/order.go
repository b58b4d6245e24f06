package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/delivery/backend/internal/application/dispatch"
	orderapp "github.com/delivery/backend/internal/application/order"
	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Idempotency headers on checkout
const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyInHeader = 128
)

// OrderService is the order use-case surface used by the handler
type OrderService interface {
	Checkout(ctx context.Context, req orderapp.CheckoutRequest) (*orderapp.OrderResponse, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*orderapp.OrderResponse, error)
	Track(ctx context.Context, id uuid.UUID) (*orderapp.TrackResponse, error)
	List(ctx context.Context, filter orderapp.OrderListFilter) ([]orderapp.OrderResponse, int64, error)
	ListForDriver(ctx context.Context, driverID uuid.UUID, filter orderapp.OrderListFilter) ([]orderapp.OrderResponse, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*orderapp.OrderResponse, error)
	UpdateStatusAsDriver(ctx context.Context, id, driverID uuid.UUID, status string) (*orderapp.OrderResponse, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*orderapp.OrderResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	InitiatePayment(ctx context.Context, id uuid.UUID) (*orderapp.PaymentLinkResponse, error)
	VerifyPayment(ctx context.Context, paymentID string) (*orderapp.PaymentVerifyResponse, error)
}

// Redispatcher restarts the driver walk for an order
type Redispatcher interface {
	Redispatch(ctx context.Context, orderID uuid.UUID) (*dispatch.Result, error)
}

// TrackingHub upgrades a request to a status stream for one order
type TrackingHub interface {
	Serve(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) error
}

// OrderHandler handles order, tracking and payment endpoints
type OrderHandler struct {
	BaseHandler
	orders     OrderService
	dispatcher Redispatcher
	hub        TrackingHub
}

// NewOrderHandler creates a new OrderHandler. dispatcher and hub may be nil.
func NewOrderHandler(orders OrderService, dispatcher Redispatcher, hub TrackingHub) *OrderHandler {
	return &OrderHandler{
		orders:     orders,
		dispatcher: dispatcher,
		hub:        hub,
	}
}

// Checkout handles POST /orders. A repeated Idempotency-Key returns the
// first order with 200 and Idempotent-Replayed: true.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req orderapp.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
		if len(key) > maxIdempotencyKeyInHeader {
			h.BadRequest(c, "Idempotency-Key is too long")
			return
		}
		req.IdempotencyKey = key
	}
	if customerID, ok := principalID(c, auth.RoleCustomer); ok {
		req.CustomerID = &customerID
	}

	resp, replayed, err := h.orders.Checkout(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if replayed {
		c.Header(IdempotentReplayedHeader, "true")
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Track handles GET /orders/:id/track, the public status view
func (h *OrderHandler) Track(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.Track(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Stream upgrades GET /orders/:id/ws to a WebSocket pushing status changes
func (h *OrderHandler) Stream(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if h.hub == nil {
		h.Error(c, http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Live tracking is not available")
		return
	}
	if _, err := h.orders.Track(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	// the upgrader answers failed handshakes itself
	if err := h.hub.Serve(c.Writer, c.Request, id); err != nil {
		logger.GetGinLogger(c).Debug("websocket upgrade failed", zap.Error(err))
	}
}

// List handles GET /orders for admins
func (h *OrderHandler) List(c *gin.Context) {
	var filter orderapp.OrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	restaurantID, ok := h.queryID(c, "restaurant_id")
	if !ok {
		return
	}
	driverID, ok := h.queryID(c, "driver_id")
	if !ok {
		return
	}
	filter.RestaurantID = restaurantID
	filter.DriverID = driverID

	rows, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}

// Get handles GET /orders/:id. Drivers only see orders assigned to them.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if driverID, isDriver := principalID(c, auth.RoleDriver); isDriver {
		if resp.DriverID == nil || *resp.DriverID != driverID {
			h.Forbidden(c, "Order is not assigned to you")
			return
		}
	}
	h.Success(c, resp)
}

// UpdateStatus handles PATCH /orders/:id/status for admins and the
// assigned driver
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req orderapp.UpdateStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var (
		resp *orderapp.OrderResponse
		err  error
	)
	if driverID, isDriver := principalID(c, auth.RoleDriver); isDriver {
		resp, err = h.orders.UpdateStatusAsDriver(c.Request.Context(), id, driverID, req.Status)
	} else {
		resp, err = h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Reject handles POST /orders/:id/reject
func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req orderapp.RejectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.orders.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete handles DELETE /orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Dispatch handles POST /orders/:id/dispatch and restarts the driver walk
func (h *OrderHandler) Dispatch(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if h.dispatcher == nil {
		h.Error(c, http.StatusServiceUnavailable, "DISPATCH_UNAVAILABLE", "Dispatch is not running")
		return
	}

	result, err := h.dispatcher.Redispatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// InitiatePayment handles POST /orders/:id/payment
func (h *OrderHandler) InitiatePayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	link, err := h.orders.InitiatePayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, link)
}

// VerifyPayment handles GET /payments/flouci/verify?payment_id=
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Query("payment_id"))
	if paymentID == "" {
		h.BadRequest(c, "payment_id is required")
		return
	}

	resp, err := h.orders.VerifyPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DriverOrders handles GET /drivers/me/orders
func (h *OrderHandler) DriverOrders(c *gin.Context) {
	driverID, ok := principalID(c, auth.RoleDriver)
	if !ok {
		h.Forbidden(c, "Driver session required")
		return
	}
	var filter orderapp.OrderListFilter
	if !h.bindQuery(c, &filter) {
		return
	}

	rows, total, err := h.orders.ListForDriver(c.Request.Context(), driverID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := pageOrDefault(filter.Page, filter.PageSize)
	h.SuccessWithMeta(c, rows, total, page, pageSize)
}
