package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc       *Service
	orders    *memOrders
	drivers   *memDrivers
	offers    *memOffers
	messages  *memMessages
	telegram  *MockTelegram
	sms       *recordingSMS
	metrics   *fakeMetrics
	publisher *recordingPublisher
	order     *order.Order
}

func newDriver(name, phone, telegramID string, lastOffered *time.Time) *driver.Driver {
	return &driver.Driver{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Phone:             phone,
		Status:            driver.StatusAvailable,
		TelegramID:        telegramID,
		LastOfferedAt:     lastOffered,
	}
}

func newFixture(t *testing.T, timeout time.Duration, drivers ...*driver.Driver) *fixture {
	t.Helper()
	r, err := restaurant.NewRestaurant("Pizza Roma", "71000000", "Avenue Habib Bourguiba")
	require.NoError(t, err)
	o, err := order.NewOrder(r.ID, order.Customer{Name: "Leila", Phone: "98123456", Address: "12 rue de Rome"}, order.PaymentMethodCash)
	require.NoError(t, err)

	f := &fixture{
		orders:    newMemOrders(o),
		drivers:   newMemDrivers(drivers...),
		offers:    &memOffers{},
		messages:  &memMessages{},
		telegram:  new(MockTelegram),
		sms:       &recordingSMS{},
		metrics:   &fakeMetrics{},
		publisher: &recordingPublisher{},
		order:     o,
	}
	f.svc = NewService(f.orders, f.drivers, stubRestaurants{r: r}, f.offers, f.messages, f.sms, fakeTokens{},
		Config{
			PublicBaseURL: "https://api.example.tn/",
			DriverAppURL:  "https://app.example.tn",
			AdminChatID:   "-100",
			OfferTimeout:  timeout,
		},
		WithTelegram(f.telegram),
		WithMetrics(f.metrics),
	)
	f.svc.SetEventPublisher(f.publisher)
	t.Cleanup(f.svc.Stop)
	return f
}

func TestService_Start_OffersLeastRecentlyOfferedDriver(t *testing.T) {
	earlier := time.Now().Add(-time.Hour)
	veteran := newDriver("Sami", "22111111", "", &earlier)
	fresh := newDriver("Nour", "22222222", "", nil)
	f := newFixture(t, time.Minute, veteran, fresh)

	res, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.NotNil(t, res.DriverID)
	assert.Equal(t, fresh.ID, *res.DriverID)
	assert.Equal(t, "sms", res.Channel)
	assert.False(t, res.Exhausted)

	require.Equal(t, []string{"+21622222222"}, f.sms.sent())
	assert.Contains(t, f.sms.text[0], "https://api.example.tn/accept/"+f.order.ID.String()+"?driverId="+fresh.ID.String())
	assert.Contains(t, f.sms.text[0], "https://api.example.tn/refuse/"+f.order.ID.String())

	assert.Equal(t, dispatch.OutcomeOffered, f.offers.outcomes(f.order.ID)[fresh.ID])
	assert.NotNil(t, f.drivers.get(fresh.ID).LastOfferedAt)
	assert.Equal(t, 1, f.svc.PendingTimers())
	assert.Equal(t, []string{"sms"}, f.metrics.offers)
}

func TestService_Refuse_AdvancesToNextDriver(t *testing.T) {
	earlier := time.Now().Add(-time.Hour)
	first := newDriver("Nour", "22222222", "", nil)
	second := newDriver("Sami", "22111111", "555", &earlier)
	f := newFixture(t, time.Minute, first, second)

	f.telegram.On("SendMessage", mock.Anything, "555", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "Pizza Roma") && strings.Contains(text, "12 rue de Rome")
	}), mock.MatchedBy(func(b []dispatch.Button) bool {
		return len(b) == 2 && strings.Contains(b[0].URL, "/accept/") && strings.Contains(b[1].URL, "/refuse/")
	})).Return(int64(42), nil).Once()

	_, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)

	res, err := f.svc.Refuse(context.Background(), f.order.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, res.TakenByOther)
	require.NotNil(t, res.Next)
	require.NotNil(t, res.Next.DriverID)
	assert.Equal(t, second.ID, *res.Next.DriverID)
	assert.Equal(t, "telegram", res.Next.Channel)

	outcomes := f.offers.outcomes(f.order.ID)
	assert.Equal(t, dispatch.OutcomeRefused, outcomes[first.ID])
	assert.Equal(t, dispatch.OutcomeOffered, outcomes[second.ID])

	msgs, err := f.messages.FindByOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "555", msgs[0].ChatID)
	assert.Equal(t, int64(42), msgs[0].MessageID)
	assert.Equal(t, 1, f.metrics.refused)
	f.telegram.AssertExpectations(t)
}

func TestService_Timeout_AdvancesToNextDriver(t *testing.T) {
	earlier := time.Now().Add(-time.Hour)
	first := newDriver("Nour", "22222222", "", nil)
	second := newDriver("Sami", "22111111", "", &earlier)
	f := newFixture(t, 20*time.Millisecond, first, second)
	f.telegram.On("SendMessage", mock.Anything, "-100", mock.Anything, mock.Anything).Return(int64(1), nil).Maybe()

	_, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		outcomes := f.offers.outcomes(f.order.ID)
		return outcomes[first.ID] == dispatch.OutcomeTimeout && outcomes[second.ID] != ""
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"+21622222222", "+21622111111"}, f.sms.sent()[:2])
}

func TestService_Accept_FirstDriverWins(t *testing.T) {
	winner := newDriver("Nour", "22222222", "111", nil)
	loser := newDriver("Sami", "22111111", "222", nil)
	f := newFixture(t, time.Minute, winner, loser)

	for _, m := range []*dispatch.TelegramMessage{
		dispatch.NewTelegramMessage(f.order.ID, winner.ID, "111", 7),
		dispatch.NewTelegramMessage(f.order.ID, loser.ID, "222", 8),
	} {
		require.NoError(t, f.messages.Save(context.Background(), m))
	}
	for _, d := range []*driver.Driver{winner, loser} {
		require.NoError(t, f.offers.Save(context.Background(), dispatch.NewOffer(f.order.ID, d.ID, dispatch.ChannelTelegram, time.Now())))
	}
	f.telegram.On("EditMessageText", mock.Anything, "111", int64(7), mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "You accepted")
	})).Return(nil).Once()
	f.telegram.On("EditMessageText", mock.Anything, "222", int64(8), mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "taken by another driver")
	})).Return(nil).Once()

	res, err := f.svc.Accept(context.Background(), f.order.ID, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.tn/driver/auto-login?token=login-"+winner.ID.String(), res.RedirectURL)

	stored := f.orders.get(f.order.ID)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, winner.ID, *stored.DriverID)
	assert.Equal(t, order.StatusAccepted, stored.Status)
	assert.Equal(t, driver.StatusOnDelivery, f.drivers.get(winner.ID).Status)

	outcomes := f.offers.outcomes(f.order.ID)
	assert.Equal(t, dispatch.OutcomeAccepted, outcomes[winner.ID])
	assert.Equal(t, dispatch.OutcomeSuperseded, outcomes[loser.ID])
	assert.Equal(t, []string{order.EventTypeOrderDriverAssigned, order.EventTypeOrderStatusChanged}, f.publisher.types())
	assert.Equal(t, 1, f.metrics.accepted)

	_, err = f.svc.Accept(context.Background(), f.order.ID, loser.ID)
	assert.ErrorIs(t, err, ErrOrderTaken)

	// the winner reopening the link gets a new login link
	again, err := f.svc.Accept(context.Background(), f.order.ID, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RedirectURL, again.RedirectURL)
	f.telegram.AssertExpectations(t)
}

func TestService_Accept_UnknownIDs(t *testing.T) {
	d := newDriver("Nour", "22222222", "", nil)
	f := newFixture(t, time.Minute, d)

	_, err := f.svc.Accept(context.Background(), f.order.ID, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.svc.Accept(context.Background(), uuid.New(), d.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_Refuse_TakenByOther(t *testing.T) {
	winner := newDriver("Nour", "22222222", "", nil)
	late := newDriver("Sami", "22111111", "", nil)
	f := newFixture(t, time.Minute, winner, late)

	_, err := f.svc.Accept(context.Background(), f.order.ID, winner.ID)
	require.NoError(t, err)

	res, err := f.svc.Refuse(context.Background(), f.order.ID, late.ID)
	require.NoError(t, err)
	assert.True(t, res.TakenByOther)
	assert.Nil(t, res.Next)
}

func TestService_Exhausted_NotifiesAdmin(t *testing.T) {
	offline := newDriver("Sami", "22111111", "", nil)
	offline.Status = driver.StatusOffline
	f := newFixture(t, time.Minute, offline)

	f.telegram.On("SendMessage", mock.Anything, "-100", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "No driver accepted") && strings.Contains(text, "Leila")
	}), []dispatch.Button(nil)).Return(int64(1), nil).Once()

	res, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Nil(t, res.DriverID)
	assert.Equal(t, 1, f.metrics.exhaustedCount)
	assert.Zero(t, f.svc.PendingTimers())
	f.telegram.AssertExpectations(t)
}

func TestService_UnreachableDriverIsSkipped(t *testing.T) {
	earlier := time.Now().Add(-time.Hour)
	broken := newDriver("Nour", "22222222", "", nil)
	reachable := newDriver("Sami", "22111111", "", &earlier)
	f := newFixture(t, time.Minute, broken, reachable)
	f.sms.failFor = map[string]error{"+21622222222": errors.New("provider down")}

	res, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.NotNil(t, res.DriverID)
	assert.Equal(t, reachable.ID, *res.DriverID)
	assert.Equal(t, dispatch.OutcomeTimeout, f.offers.outcomes(f.order.ID)[broken.ID])
}

func TestService_TelegramFailureFallsBackToSMS(t *testing.T) {
	d := newDriver("Nour", "22222222", "999", nil)
	f := newFixture(t, time.Minute, d)
	f.telegram.On("SendMessage", mock.Anything, "999", mock.Anything, mock.Anything).
		Return(int64(0), dispatch.ErrNotifierUnavailable).Once()

	res, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, "sms", res.Channel)
	assert.Equal(t, []string{"+21622222222"}, f.sms.sent())
}

func (f *fixture) openOffers(t *testing.T) []uuid.UUID {
	t.Helper()
	offers, err := f.offers.FindByOrder(context.Background(), f.order.ID)
	require.NoError(t, err)
	var open []uuid.UUID
	for _, o := range offers {
		if o.Outcome == dispatch.OutcomeOffered {
			open = append(open, o.DriverID)
		}
	}
	return open
}

func threeDrivers() (first, second, third *driver.Driver) {
	older := time.Now().Add(-2 * time.Hour)
	old := time.Now().Add(-time.Hour)
	return newDriver("Nour", "22222222", "", nil),
		newDriver("Sami", "22111111", "", &older),
		newDriver("Hedi", "22333333", "", &old)
}

func TestService_LateRefusalAfterTimeout(t *testing.T) {
	first, second, third := threeDrivers()
	f := newFixture(t, time.Minute, first, second, third)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, f.order.ID)
	require.NoError(t, err)
	f.svc.expire(ctx, f.order.ID, first.ID)
	require.Equal(t, []uuid.UUID{second.ID}, f.openOffers(t))

	res, err := f.svc.Refuse(ctx, f.order.ID, first.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Next, "the walk already moved on")
	assert.Equal(t, []uuid.UUID{second.ID}, f.openOffers(t))
	assert.Equal(t, []string{"+21622222222", "+21622111111"}, f.sms.sent())
	assert.Equal(t, dispatch.OutcomeRefused, f.offers.outcomes(f.order.ID)[first.ID])
	assert.Equal(t, 1, f.svc.PendingTimers())
}

func TestService_RefusalRacingTimeoutAdvancesOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		first, second, third := threeDrivers()
		f := newFixture(t, time.Minute, first, second, third)
		ctx := context.Background()

		_, err := f.svc.Start(ctx, f.order.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.svc.expire(ctx, f.order.ID, first.ID)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.Refuse(ctx, f.order.ID, first.ID)
		}()
		wg.Wait()

		require.Equal(t, []uuid.UUID{second.ID}, f.openOffers(t))
		require.Len(t, f.sms.sent(), 2)
		assert.Zero(t, f.svc.locks.held())
	}
}

func TestService_OfferNextClosesStrayOpenOffers(t *testing.T) {
	d := newDriver("Nour", "22222222", "", nil)
	f := newFixture(t, time.Minute, d)
	stranger := uuid.New()
	require.NoError(t, f.offers.Save(context.Background(),
		dispatch.NewOffer(f.order.ID, stranger, dispatch.ChannelSMS, time.Now().Add(-time.Minute))))

	res, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)
	require.NotNil(t, res.DriverID)
	assert.Equal(t, d.ID, *res.DriverID)
	assert.Equal(t, []uuid.UUID{d.ID}, f.openOffers(t))
	assert.Equal(t, dispatch.OutcomeSuperseded, f.offers.outcomes(f.order.ID)[stranger])
}

func TestService_Redispatch(t *testing.T) {
	first := newDriver("Nour", "22222222", "", nil)
	f := newFixture(t, time.Minute, first)

	_, err := f.svc.Start(context.Background(), f.order.ID)
	require.NoError(t, err)

	f.telegram.On("SendMessage", mock.Anything, "-100", mock.Anything, mock.Anything).Return(int64(1), nil).Once()
	res, err := f.svc.Redispatch(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.True(t, res.Exhausted, "the only driver already had the order")
	assert.Equal(t, dispatch.OutcomeTimeout, f.offers.outcomes(f.order.ID)[first.ID])

	_, err = f.svc.Accept(context.Background(), f.order.ID, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Redispatch(context.Background(), f.order.ID)
	assert.ErrorIs(t, err, ErrNotDispatchable)
}

func TestOrderCreatedHandler(t *testing.T) {
	d := newDriver("Nour", "22222222", "", nil)
	f := newFixture(t, time.Minute, d)
	h := NewOrderCreatedHandler(f.svc, nil)

	assert.Equal(t, []string{order.EventTypeOrderCreated}, h.EventTypes())
	require.NoError(t, h.Handle(context.Background(), order.NewOrderCreatedEvent(f.order)))
	assert.Equal(t, dispatch.OutcomeOffered, f.offers.outcomes(f.order.ID)[d.ID])

	err := h.Handle(context.Background(), order.NewOrderDriverAssignedEvent(f.order))
	assert.Error(t, err)
}
