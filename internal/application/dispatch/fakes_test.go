package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memOrders keeps orders in memory and hands out copies, like a database would
type memOrders struct {
	order.OrderRepository
	mu     sync.Mutex
	orders map[uuid.UUID]order.Order
}

func newMemOrders(orders ...*order.Order) *memOrders {
	m := &memOrders{orders: make(map[uuid.UUID]order.Order)}
	for _, o := range orders {
		m.orders[o.ID] = *o
	}
	return m
}

func (m *memOrders) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	o.ClearDomainEvents()
	return &o, nil
}

func (m *memOrders) AssignDriver(_ context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.DriverID != nil || !o.Status.IsAssignable() {
		return false, nil
	}
	o.DriverID = &driverID
	o.AssignedAt = &at
	if o.Status == order.StatusPending {
		o.Status = order.StatusAccepted
	}
	m.orders[orderID] = o
	return true, nil
}

func (m *memOrders) get(id uuid.UUID) order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

type memDrivers struct {
	driver.DriverRepository
	mu      sync.Mutex
	drivers map[uuid.UUID]driver.Driver
}

func newMemDrivers(drivers ...*driver.Driver) *memDrivers {
	m := &memDrivers{drivers: make(map[uuid.UUID]driver.Driver)}
	for _, d := range drivers {
		m.drivers[d.ID] = *d
	}
	return m
}

func (m *memDrivers) FindByID(_ context.Context, id uuid.UUID) (*driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

func (m *memDrivers) FindByPhone(_ context.Context, phone string) (*driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			return &d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memDrivers) Save(_ context.Context, d *driver.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = *d
	return nil
}

func (m *memDrivers) FindByTelegramID(_ context.Context, telegramID string) (*driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.TelegramID == telegramID {
			return &d, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memDrivers) FindDispatchCandidates(_ context.Context, exclude []uuid.UUID) ([]driver.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skip := make(map[uuid.UUID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []driver.Driver
	for _, d := range m.drivers {
		if d.Status == driver.StatusAvailable && !skip[d.ID] {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastOfferedAt, out[j].LastOfferedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *memDrivers) MarkOffered(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drivers[id]
	d.LastOfferedAt = &at
	m.drivers[id] = d
	return nil
}

func (m *memDrivers) UpdateStatus(_ context.Context, id uuid.UUID, status driver.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drivers[id]
	d.Status = status
	m.drivers[id] = d
	return nil
}

func (m *memDrivers) get(id uuid.UUID) driver.Driver {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drivers[id]
}

type memOffers struct {
	mu     sync.Mutex
	offers []dispatch.Offer
}

func (m *memOffers) Save(_ context.Context, o *dispatch.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.offers {
		if m.offers[i].ID == o.ID {
			m.offers[i] = *o
			return nil
		}
	}
	m.offers = append(m.offers, *o)
	return nil
}

func (m *memOffers) FindOpen(_ context.Context, orderID, driverID uuid.UUID) (*dispatch.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.offers {
		if o.OrderID == orderID && o.DriverID == driverID && o.Outcome == dispatch.OutcomeOffered {
			return &o, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memOffers) FindByOrder(_ context.Context, orderID uuid.UUID) ([]dispatch.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dispatch.Offer
	for _, o := range m.offers {
		if o.OrderID == orderID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOffers) ExcludedDrivers(_ context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, o := range m.offers {
		if o.OrderID == orderID && o.Outcome.IsFinal() {
			out = append(out, o.DriverID)
		}
	}
	return out, nil
}

func (m *memOffers) CloseOpen(_ context.Context, orderID, exceptDriver uuid.UUID, outcome dispatch.Outcome, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.offers {
		o := &m.offers[i]
		if o.OrderID == orderID && o.Outcome == dispatch.OutcomeOffered && o.DriverID != exceptDriver {
			_ = o.Close(outcome, at)
			n++
		}
	}
	return n, nil
}

// outcomes maps driver to its latest outcome for an order
func (m *memOffers) outcomes(orderID uuid.UUID) map[uuid.UUID]dispatch.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]dispatch.Outcome)
	for _, o := range m.offers {
		if o.OrderID == orderID {
			out[o.DriverID] = o.Outcome
		}
	}
	return out
}

type memMessages struct {
	mu   sync.Mutex
	msgs []dispatch.TelegramMessage
}

func (m *memMessages) Save(_ context.Context, msg *dispatch.TelegramMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMessages) FindByOrder(_ context.Context, orderID uuid.UUID) ([]dispatch.TelegramMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dispatch.TelegramMessage
	for _, msg := range m.msgs {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type stubRestaurants struct {
	restaurant.RestaurantRepository
	r *restaurant.Restaurant
}

func (s stubRestaurants) FindByID(_ context.Context, id uuid.UUID) (*restaurant.Restaurant, error) {
	if s.r == nil || s.r.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.r, nil
}

type MockTelegram struct {
	mock.Mock
}

func (m *MockTelegram) SendMessage(ctx context.Context, chatID, text string, buttons []dispatch.Button) (int64, error) {
	args := m.Called(ctx, chatID, text, buttons)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTelegram) EditMessageText(ctx context.Context, chatID string, messageID int64, text string) error {
	return m.Called(ctx, chatID, messageID, text).Error(0)
}

func (m *MockTelegram) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return m.Called(ctx, callbackID, text).Error(0)
}

// recordingSMS captures texts and fails for phones in failFor
type recordingSMS struct {
	mu      sync.Mutex
	to      []string
	text    []string
	failFor map[string]error
}

func (r *recordingSMS) Send(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failFor[to]; err != nil {
		return err
	}
	r.to = append(r.to, to)
	r.text = append(r.text, text)
	return nil
}

func (r *recordingSMS) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.to...)
}

type fakeTokens struct{}

func (fakeTokens) GenerateDriverLoginToken(driverID uuid.UUID, _ string) (string, error) {
	return "login-" + driverID.String(), nil
}

type fakeMetrics struct {
	mu                                          sync.Mutex
	offers                                      []string
	accepted, refused, timeouts, exhaustedCount int
}

func (f *fakeMetrics) RecordOffer(_ context.Context, channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers = append(f.offers, channel)
}

func (f *fakeMetrics) RecordAccepted(context.Context, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
}

func (f *fakeMetrics) RecordRefused(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refused++
}

func (f *fakeMetrics) RecordTimeout(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts++
}

func (f *fakeMetrics) RecordExhausted(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exhaustedCount++
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}
