// Package realtime pushes order status updates to WebSocket subscribers.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 8
)

// Update is the message pushed to tracking clients
type Update struct {
	OrderID  uuid.UUID  `json:"orderId"`
	Status   string     `json:"status"`
	DriverID *uuid.UUID `json:"driverId,omitempty"`
}

type client struct {
	orderID uuid.UUID
	conn    *websocket.Conn
	send    chan Update
}

type countRequest struct {
	orderID uuid.UUID
	reply   chan int
}

// Hub keeps the WebSocket clients of each order. All client bookkeeping
// happens on the Run goroutine.
type Hub struct {
	clients    map[uuid.UUID]map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan Update
	count      chan countRequest
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(logger *zap.Logger, allowedOrigins ...string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Update, 64),
		count:      make(chan countRequest),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer h.closeOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[uuid.UUID]map[*client]struct{})
			return

		case c := <-h.register:
			set := h.clients[c.orderID]
			if set == nil {
				set = make(map[*client]struct{})
				h.clients[c.orderID] = set
			}
			set[c] = struct{}{}

		case c := <-h.unregister:
			h.remove(c)

		case u := <-h.broadcast:
			for c := range h.clients[u.OrderID] {
				select {
				case c.send <- u:
				default:
					// slow consumer
					h.remove(c)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.orderID])
		}
	}
}

func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.orderID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.orderID)
	}
}

// Serve upgrades the request and subscribes the connection to orderID
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{orderID: orderID, conn: conn, send: make(chan Update, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return nil
	}
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

// readPump only watches for the client going away
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case u, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(u); err != nil {
				h.logger.Debug("ws write failed", zap.String("order_id", c.orderID.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish queues an update for the subscribers of its order
func (h *Hub) Publish(u Update) {
	select {
	case h.broadcast <- u:
	case <-h.done:
	}
}

// Subscribers returns how many clients follow orderID
func (h *Hub) Subscribers(orderID uuid.UUID) int {
	req := countRequest{orderID: orderID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// EventTypes returns the events that change what tracking clients see
func (h *Hub) EventTypes() []string {
	return []string{order.EventTypeOrderStatusChanged, order.EventTypeOrderDriverAssigned}
}

// Handle turns order events into tracking updates
func (h *Hub) Handle(_ context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *order.OrderStatusChangedEvent:
		h.Publish(Update{OrderID: e.OrderID, Status: string(e.To), DriverID: e.DriverID})
	case *order.OrderDriverAssignedEvent:
		driverID := e.DriverID
		h.Publish(Update{OrderID: e.OrderID, Status: string(e.Status), DriverID: &driverID})
	}
	return nil
}

var _ shared.EventHandler = (*Hub)(nil)
