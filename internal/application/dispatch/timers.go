package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimerRegistry holds at most one offer timer per order
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	closed bool
}

// NewTimerRegistry creates an empty registry
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{timers: make(map[uuid.UUID]*time.Timer)}
}

// Arm schedules fn after d, stopping any timer already armed for the order.
// fn does not run if the timer is cancelled or replaced before it fires.
func (r *TimerRegistry) Arm(orderID uuid.UUID, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if t, ok := r.timers[orderID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		current, ok := r.timers[orderID]
		if !ok || current != t {
			r.mu.Unlock()
			return
		}
		delete(r.timers, orderID)
		r.mu.Unlock()
		fn()
	})
	r.timers[orderID] = t
}

// Cancel stops the order's timer and reports whether one was armed
func (r *TimerRegistry) Cancel(orderID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[orderID]
	if !ok {
		return false
	}
	t.Stop()
	delete(r.timers, orderID)
	return true
}

// Pending returns the number of armed timers
func (r *TimerRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll stops every timer. Later calls to Arm are ignored.
func (r *TimerRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.closed = true
}

// orderLocks serialises the dispatch steps of one order within the process.
// Entries are dropped once no goroutine holds or waits on them.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[uuid.UUID]*orderLock)}
}

// lock blocks until the order is free and returns the matching unlock
func (l *orderLocks) lock(orderID uuid.UUID) (unlock func()) {
	l.mu.Lock()
	ol, ok := l.locks[orderID]
	if !ok {
		ol = &orderLock{}
		l.locks[orderID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, orderID)
		}
		l.mu.Unlock()
	}
}

func (l *orderLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
