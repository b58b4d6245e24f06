package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	return m.Called().Get(0).([]string)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

type dispatchStarted struct {
	shared.BaseDomainEvent
}

func newDispatchStarted() *dispatchStarted {
	return &dispatchStarted{BaseDomainEvent: shared.NewBaseDomainEvent("OrderCreated", "Order", uuid.New())}
}

func TestIdempotentHandler_DuplicateDeliverySkipped(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newDispatchStarted()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(inner, store, nil)
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	inner.AssertExpectations(t)
	assert.Equal(t, DedupStats{Processed: 1, Duplicates: 1}, h.Stats())
}

func TestIdempotentHandler_FailureReleasesMarker(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()

	inner := new(MockEventHandler)
	event := newDispatchStarted()
	inner.On("Handle", mock.Anything, event).Return(errors.New("no driver reachable")).Once()
	inner.On("Handle", mock.Anything, event).Return(nil).Once()

	h := NewIdempotentHandler(inner, store, nil)
	assert.Error(t, h.Handle(context.Background(), event))

	processed, err := store.IsProcessed(context.Background(), event.EventID().String())
	require.NoError(t, err)
	assert.False(t, processed, "a failed event can be redelivered")

	require.NoError(t, h.Handle(context.Background(), event))
	inner.AssertExpectations(t)
	assert.Equal(t, DedupStats{Processed: 1, Failed: 1}, h.Stats())
}

func TestIdempotentHandler_StoreErrorStillProcesses(t *testing.T) {
	store := new(MockIdempotencyStore)
	event := newDispatchStarted()
	store.On("MarkProcessed", mock.Anything, event.EventID().String(), mock.Anything).
		Return(false, errors.New("redis unreachable"))

	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(errors.New("failed"))

	h := NewIdempotentHandler(inner, store, nil)
	assert.Error(t, h.Handle(context.Background(), event))

	// nothing was claimed, so nothing is released
	store.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestIdempotentHandler_NilStorePassesThrough(t *testing.T) {
	inner := new(MockEventHandler)
	event := newDispatchStarted()
	inner.On("Handle", mock.Anything, event).Return(nil).Twice()
	inner.On("EventTypes").Return([]string{"OrderCreated"})

	h := NewIdempotentHandler(inner, nil, nil)
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, []string{"OrderCreated"}, h.EventTypes())
	inner.AssertExpectations(t)
	assert.Equal(t, int64(2), h.Stats().Processed)
}

func TestIdempotentHandler_MarkerTTL(t *testing.T) {
	event := newDispatchStarted()
	inner := new(MockEventHandler)
	inner.On("Handle", mock.Anything, event).Return(nil)

	store := new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, event.EventID().String(), time.Hour).Return(true, nil).Once()

	h := NewIdempotentHandler(inner, store, nil, WithMarkerTTL(time.Hour))
	require.NoError(t, h.Handle(context.Background(), event))
	store.AssertExpectations(t)

	store = new(MockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, event.EventID().String(), DefaultMarkerTTL).Return(true, nil).Once()
	h = NewIdempotentHandler(inner, store, nil, WithMarkerTTL(0))
	require.NoError(t, h.Handle(context.Background(), event))
	store.AssertExpectations(t)
}
