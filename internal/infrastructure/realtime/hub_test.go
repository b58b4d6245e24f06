package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID := uuid.MustParse(strings.TrimPrefix(r.URL.Path, "/"))
		_ = hub.Serve(w, r, orderID)
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, orderID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/" + orderID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_PushesStatusChanges(t *testing.T) {
	hub, server := startHub(t)
	orderID := uuid.New()
	other := uuid.New()

	conn := dial(t, server, orderID)
	otherConn := dial(t, server, other)
	require.Eventually(t, func() bool {
		return hub.Subscribers(orderID) == 1 && hub.Subscribers(other) == 1
	}, time.Second, 10*time.Millisecond)

	driverID := uuid.New()
	require.NoError(t, hub.Handle(context.Background(), &order.OrderDriverAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(order.EventTypeOrderDriverAssigned, order.AggregateTypeOrder, orderID),
		OrderID:         orderID,
		DriverID:        driverID,
		Status:          order.StatusAccepted,
	}))

	var got Update
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, "accepted", got.Status)
	require.NotNil(t, got.DriverID)
	assert.Equal(t, driverID, *got.DriverID)

	// the other order's subscriber receives nothing
	_ = otherConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var none Update
	assert.Error(t, otherConn.ReadJSON(&none))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, server := startHub(t)
	orderID := uuid.New()

	conn := dial(t, server, orderID)
	require.Eventually(t, func() bool { return hub.Subscribers(orderID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(orderID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_IgnoresOtherEvents(t *testing.T) {
	hub := NewHub(nil)
	assert.ElementsMatch(t, []string{order.EventTypeOrderStatusChanged, order.EventTypeOrderDriverAssigned}, hub.EventTypes())
	// no Run goroutine: an unrelated event must not block
	assert.NoError(t, hub.Handle(context.Background(), &order.OrderCreatedEvent{}))
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(nil, "https://shop.example")
	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.Header.Set("Origin", "https://shop.example")
	denied := httptest.NewRequest(http.MethodGet, "/", nil)
	denied.Header.Set("Origin", "https://evil.example")

	assert.True(t, hub.upgrader.CheckOrigin(allowed))
	assert.False(t, hub.upgrader.CheckOrigin(denied))
}
