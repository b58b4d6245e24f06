package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/dispatch"
	"github.com/delivery/backend/internal/domain/driver"
	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/restaurant"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOfferTimeout is used when neither settings nor config provide one
const DefaultOfferTimeout = 90 * time.Second

// background work started by timers gets this much time
const timerWorkTimeout = 30 * time.Second

// Dispatch errors
var (
	ErrOrderTaken       = shared.NewDomainError("ORDER_ALREADY_TAKEN", "This order was already taken by another driver")
	ErrNotDispatchable  = shared.NewDomainError("INVALID_STATE", "Order is assigned or no longer waiting for a driver")
	ErrNoChannelReached = errors.New("dispatch: driver could not be reached")
)

// Metrics records dispatch activity. Implemented by telemetry.DeliveryMetrics.
type Metrics interface {
	RecordOffer(ctx context.Context, channel string)
	RecordAccepted(ctx context.Context, wait time.Duration)
	RecordRefused(ctx context.Context)
	RecordTimeout(ctx context.Context)
	RecordExhausted(ctx context.Context)
}

// TimeoutSource resolves the current offer timeout
type TimeoutSource interface {
	DispatchTimeout(ctx context.Context, fallback time.Duration) time.Duration
}

// LoginTokenIssuer issues the token that signs a driver in after accepting
type LoginTokenIssuer interface {
	GenerateDriverLoginToken(driverID uuid.UUID, name string) (string, error)
}

// Config holds the URLs and chat used in offers
type Config struct {
	PublicBaseURL string
	DriverAppURL  string
	AdminChatID   string
	OfferTimeout  time.Duration
}

// Result describes where a dispatch walk stopped
type Result struct {
	OrderID   uuid.UUID  `json:"order_id"`
	DriverID  *uuid.UUID `json:"driver_id,omitempty"`
	Channel   string     `json:"channel,omitempty"`
	Exhausted bool       `json:"exhausted"`
}

// AcceptResult is returned to a driver that claimed an order
type AcceptResult struct {
	OrderID     uuid.UUID
	DriverID    uuid.UUID
	RedirectURL string
}

// RefuseResult is returned to a driver that declined an order
type RefuseResult struct {
	OrderID uuid.UUID
	// TakenByOther is set when the order already belongs to another driver
	TakenByOther bool
	Next         *Result
}

// Service walks available drivers one at a time until one accepts an order
type Service struct {
	orders         order.OrderRepository
	drivers        driver.DriverRepository
	restaurants    restaurant.RestaurantRepository
	offers         dispatch.OfferRepository
	messages       dispatch.TelegramMessageRepository
	telegram       dispatch.TelegramSender
	sms            dispatch.SMSSender
	tokens         LoginTokenIssuer
	linker         TelegramLinker
	timeouts       TimeoutSource
	metrics        Metrics
	eventPublisher shared.EventPublisher
	timers         *TimerRegistry
	locks          *orderLocks
	config         Config
	logger         *zap.Logger
	now            func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithTelegram sends offers over the bot when drivers linked a chat
func WithTelegram(t dispatch.TelegramSender) Option {
	return func(s *Service) { s.telegram = t }
}

// WithTimeoutSource reads the offer timeout from settings
func WithTimeoutSource(t TimeoutSource) Option {
	return func(s *Service) { s.timeouts = t }
}

// WithMetrics records dispatch metrics
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a dispatch service
func NewService(
	orders order.OrderRepository,
	drivers driver.DriverRepository,
	restaurants restaurant.RestaurantRepository,
	offers dispatch.OfferRepository,
	messages dispatch.TelegramMessageRepository,
	sms dispatch.SMSSender,
	tokens LoginTokenIssuer,
	cfg Config,
	opts ...Option,
) *Service {
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = DefaultOfferTimeout
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.DriverAppURL = strings.TrimRight(cfg.DriverAppURL, "/")
	s := &Service{
		orders:      orders,
		drivers:     drivers,
		restaurants: restaurants,
		offers:      offers,
		messages:    messages,
		sms:         sms,
		tokens:      tokens,
		timers:      NewTimerRegistry(),
		locks:       newOrderLocks(),
		config:      cfg,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Start offers a new order to the first candidate driver
func (s *Service) Start(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "start", telemetry.AttrOrderID.String(orderID.String()))
	defer span.End()
	defer s.locks.lock(orderID)()

	res, err := s.offerNext(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return res, err
}

// Redispatch restarts the walk for an unassigned order. Open offers are
// closed as timed out and drivers that already answered stay skipped.
func (s *Service) Redispatch(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	defer s.locks.lock(orderID)()

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil || !o.Status.IsAssignable() {
		return nil, ErrNotDispatchable
	}
	s.timers.Cancel(orderID)
	if _, err := s.offers.CloseOpen(ctx, orderID, uuid.Nil, dispatch.OutcomeTimeout, s.now()); err != nil {
		return nil, fmt.Errorf("close open offers: %w", err)
	}
	s.logger.Info("dispatch restarted", zap.String("order_id", orderID.String()))
	return s.offerNext(ctx, orderID)
}

// Accept assigns the order to the driver. Only the first driver wins; the
// others get ErrOrderTaken. Accepting an order the driver already holds
// issues a fresh login link.
func (s *Service) Accept(ctx context.Context, orderID, driverID uuid.UUID) (*AcceptResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "accept",
		telemetry.AttrOrderID.String(orderID.String()), telemetry.AttrDriverID.String(driverID.String()))
	defer span.End()
	defer s.locks.lock(orderID)()

	d, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil {
		if *o.DriverID == driverID {
			return s.acceptResult(o.ID, d)
		}
		return nil, ErrOrderTaken
	}

	at := s.now()
	ok, err := s.orders.AssignDriver(ctx, orderID, driverID, at)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("assign driver: %w", err)
	}
	if !ok {
		s.logger.Info("order already taken",
			zap.String("order_id", orderID.String()),
			zap.String("driver_id", driverID.String()))
		return nil, ErrOrderTaken
	}
	s.timers.Cancel(orderID)

	var wait time.Duration
	if offer, err := s.offers.FindOpen(ctx, orderID, driverID); err == nil {
		wait = at.Sub(offer.OfferedAt)
		if err := offer.Close(dispatch.OutcomeAccepted, at); err == nil {
			if err := s.offers.Save(ctx, offer); err != nil {
				s.logger.Warn("save accepted offer", zap.Error(err))
			}
		}
	} else if !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("find open offer", zap.Error(err))
	}
	if _, err := s.offers.CloseOpen(ctx, orderID, driverID, dispatch.OutcomeSuperseded, at); err != nil {
		s.logger.Warn("supersede offers", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	if err := s.drivers.UpdateStatus(ctx, driverID, driver.StatusOnDelivery); err != nil {
		s.logger.Warn("set driver on delivery", zap.String("driver_id", driverID.String()), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordAccepted(ctx, wait)
	}

	s.editMessages(ctx, orderID, driverID)

	// mirror the guarded update on the loaded aggregate to raise its events
	if err := o.AssignDriver(driverID, at); err == nil {
		s.publish(ctx, o)
	}

	s.logger.Info("order accepted",
		zap.String("order_id", orderID.String()),
		zap.String("driver_id", driverID.String()),
		zap.Duration("wait", wait))
	return s.acceptResult(orderID, d)
}

// Refuse records the driver's refusal and offers the order to the next driver
func (s *Service) Refuse(ctx context.Context, orderID, driverID uuid.UUID) (*RefuseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", "refuse",
		telemetry.AttrOrderID.String(orderID.String()), telemetry.AttrDriverID.String(driverID.String()))
	defer span.End()
	defer s.locks.lock(orderID)()

	if _, err := s.drivers.FindByID(ctx, driverID); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil {
		return &RefuseResult{OrderID: orderID, TakenByOther: *o.DriverID != driverID}, nil
	}

	at := s.now()
	offer, err := s.offers.FindOpen(ctx, orderID, driverID)
	stale := false
	switch {
	case errors.Is(err, shared.ErrNotFound):
		// the link can outlive the offer, still remember the answer
		offer = dispatch.NewOffer(orderID, driverID, dispatch.ChannelSMS, at)
		stale = true
	case err != nil:
		return nil, err
	}
	if err := offer.Close(dispatch.OutcomeRefused, at); err != nil {
		return nil, err
	}
	if err := s.offers.Save(ctx, offer); err != nil {
		return nil, fmt.Errorf("save refused offer: %w", err)
	}
	if stale {
		// the walk already moved past this driver
		waiting, err := s.hasOpenOffer(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if waiting {
			s.logger.Info("late refusal recorded",
				zap.String("order_id", orderID.String()),
				zap.String("driver_id", driverID.String()))
			return &RefuseResult{OrderID: orderID}, nil
		}
	}
	s.timers.Cancel(orderID)
	if s.metrics != nil {
		s.metrics.RecordRefused(ctx)
	}
	s.logger.Info("offer refused",
		zap.String("order_id", orderID.String()),
		zap.String("driver_id", driverID.String()))

	next, err := s.offerNext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &RefuseResult{OrderID: orderID, Next: next}, nil
}

// Stop cancels every pending offer timer
func (s *Service) Stop() {
	s.timers.StopAll()
}

// PendingTimers returns the number of orders waiting on a driver answer
func (s *Service) PendingTimers() int {
	return s.timers.Pending()
}

func (s *Service) hasOpenOffer(ctx context.Context, orderID uuid.UUID) (bool, error) {
	offers, err := s.offers.FindByOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("list offers: %w", err)
	}
	for _, o := range offers {
		if !o.Outcome.IsFinal() {
			return true, nil
		}
	}
	return false, nil
}

// offerNext sends the order to the next reachable candidate. Drivers that
// cannot be reached on any channel are recorded as timed out and skipped.
// Callers hold the order lock. Offers still open when it runs, left by
// another instance, are closed first so at most one driver holds an offer.
func (s *Service) offerNext(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID != nil || !o.Status.IsAssignable() {
		return &Result{OrderID: orderID, DriverID: o.DriverID}, nil
	}
	if n, err := s.offers.CloseOpen(ctx, orderID, uuid.Nil, dispatch.OutcomeSuperseded, s.now()); err != nil {
		return nil, fmt.Errorf("close open offers: %w", err)
	} else if n > 0 {
		s.logger.Warn("closed stray open offers",
			zap.String("order_id", orderID.String()),
			zap.Int64("count", n))
	}

	excluded, err := s.offers.ExcludedDrivers(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("excluded drivers: %w", err)
	}
	candidates, err := s.drivers.FindDispatchCandidates(ctx, excluded)
	if err != nil {
		return nil, fmt.Errorf("dispatch candidates: %w", err)
	}

	storeName := ""
	if r, err := s.restaurants.FindByID(ctx, o.RestaurantID); err == nil {
		storeName = r.Name
	}

	for i := range candidates {
		d := &candidates[i]
		at := s.now()
		channel, msgID, err := s.send(ctx, o, storeName, d)
		if err != nil {
			s.logger.Warn("driver unreachable",
				zap.String("order_id", orderID.String()),
				zap.String("driver_id", d.ID.String()),
				zap.Error(err))
			skipped := dispatch.NewOffer(orderID, d.ID, dispatch.ChannelSMS, at)
			_ = skipped.Close(dispatch.OutcomeTimeout, at)
			if err := s.offers.Save(ctx, skipped); err != nil {
				return nil, fmt.Errorf("save offer: %w", err)
			}
			continue
		}

		offer := dispatch.NewOffer(orderID, d.ID, channel, at)
		if err := s.offers.Save(ctx, offer); err != nil {
			return nil, fmt.Errorf("save offer: %w", err)
		}
		if channel == dispatch.ChannelTelegram {
			msg := dispatch.NewTelegramMessage(orderID, d.ID, d.TelegramID, msgID)
			if err := s.messages.Save(ctx, msg); err != nil {
				s.logger.Warn("save telegram message", zap.Error(err))
			}
		}
		if err := s.drivers.MarkOffered(ctx, d.ID, at); err != nil {
			s.logger.Warn("mark driver offered", zap.String("driver_id", d.ID.String()), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordOffer(ctx, string(channel))
		}
		s.armTimer(ctx, orderID, d.ID)

		s.logger.Info("order offered",
			zap.String("order_id", orderID.String()),
			zap.String("driver_id", d.ID.String()),
			zap.String("channel", string(channel)))
		id := d.ID
		return &Result{OrderID: orderID, DriverID: &id, Channel: string(channel)}, nil
	}

	s.exhausted(ctx, o, storeName)
	return &Result{OrderID: orderID, Exhausted: true}, nil
}

// send delivers the offer over Telegram when linked, falling back to SMS
func (s *Service) send(ctx context.Context, o *order.Order, storeName string, d *driver.Driver) (dispatch.Channel, int64, error) {
	acceptURL, refuseURL := s.links(o.ID, d.ID)
	if d.HasTelegram() && s.telegram != nil {
		buttons := []dispatch.Button{
			{Text: "✅ Accept", URL: acceptURL},
			{Text: "❌ Refuse", URL: refuseURL},
		}
		msgID, err := s.telegram.SendMessage(ctx, d.TelegramID, offerText(o, storeName), buttons)
		if err == nil {
			return dispatch.ChannelTelegram, msgID, nil
		}
		s.logger.Warn("telegram offer failed, trying sms", zap.String("driver_id", d.ID.String()), zap.Error(err))
	}
	if s.sms == nil {
		return "", 0, ErrNoChannelReached
	}
	to := d.Phone
	if p, err := valueobject.NewPhone(d.Phone); err == nil {
		to = p.E164()
	}
	text := fmt.Sprintf("New order %s from %s, %s TND, to %s. Accept: %s Refuse: %s",
		shortID(o.ID), orDefault(storeName, "a restaurant"), o.TotalPrice.StringFixed(3),
		o.Customer.Address, acceptURL, refuseURL)
	if err := s.sms.Send(ctx, to, text); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrNoChannelReached, err)
	}
	return dispatch.ChannelSMS, 0, nil
}

func (s *Service) links(orderID, driverID uuid.UUID) (accept, refuse string) {
	q := url.Values{"driverId": {driverID.String()}}.Encode()
	accept = fmt.Sprintf("%s/accept/%s?%s", s.config.PublicBaseURL, orderID, q)
	refuse = fmt.Sprintf("%s/refuse/%s?%s", s.config.PublicBaseURL, orderID, q)
	return accept, refuse
}

func (s *Service) armTimer(ctx context.Context, orderID, driverID uuid.UUID) {
	timeout := s.config.OfferTimeout
	if s.timeouts != nil {
		timeout = s.timeouts.DispatchTimeout(ctx, timeout)
	}
	s.timers.Arm(orderID, timeout, func() {
		tctx, cancel := context.WithTimeout(context.Background(), timerWorkTimeout)
		defer cancel()
		s.expire(tctx, orderID, driverID)
	})
}

// expire closes an unanswered offer and moves on to the next driver. It
// takes the order lock, so a refusal racing the timer advances the walk once.
func (s *Service) expire(ctx context.Context, orderID, driverID uuid.UUID) {
	defer s.locks.lock(orderID)()

	offer, err := s.offers.FindOpen(ctx, orderID, driverID)
	if err != nil {
		// answered in the meantime
		return
	}
	if err := offer.Close(dispatch.OutcomeTimeout, s.now()); err != nil {
		return
	}
	if err := s.offers.Save(ctx, offer); err != nil {
		s.logger.Error("save timed out offer", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimeout(ctx)
	}
	s.logger.Info("offer timed out",
		zap.String("order_id", orderID.String()),
		zap.String("driver_id", driverID.String()))
	if _, err := s.offerNext(ctx, orderID); err != nil {
		s.logger.Error("dispatch next driver", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}

func (s *Service) exhausted(ctx context.Context, o *order.Order, storeName string) {
	if s.metrics != nil {
		s.metrics.RecordExhausted(ctx)
	}
	s.logger.Warn("no driver available", zap.String("order_id", o.ID.String()))
	if s.telegram == nil || s.config.AdminChatID == "" {
		return
	}
	text := fmt.Sprintf("⚠️ No driver accepted order <b>%s</b> from %s (%s TND).\nCustomer: %s, %s",
		shortID(o.ID), html.EscapeString(orDefault(storeName, "unknown restaurant")),
		o.TotalPrice.StringFixed(3), html.EscapeString(o.Customer.Name), html.EscapeString(o.Customer.Phone))
	if _, err := s.telegram.SendMessage(ctx, s.config.AdminChatID, text, nil); err != nil {
		s.logger.Warn("notify admin chat", zap.Error(err))
	}
}

// editMessages replaces the offer buttons in every chat that saw the order
func (s *Service) editMessages(ctx context.Context, orderID, winner uuid.UUID) {
	if s.telegram == nil {
		return
	}
	msgs, err := s.messages.FindByOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("load telegram messages", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	for _, m := range msgs {
		text := fmt.Sprintf("Order <b>%s</b> was taken by another driver.", shortID(orderID))
		if m.DriverID == winner {
			text = fmt.Sprintf("✅ You accepted order <b>%s</b>.", shortID(orderID))
		}
		if err := s.telegram.EditMessageText(ctx, m.ChatID, m.MessageID, text); err != nil {
			s.logger.Debug("edit telegram message", zap.Int64("message_id", m.MessageID), zap.Error(err))
		}
	}
}

func (s *Service) acceptResult(orderID uuid.UUID, d *driver.Driver) (*AcceptResult, error) {
	token, err := s.tokens.GenerateDriverLoginToken(d.ID, d.Name)
	if err != nil {
		return nil, fmt.Errorf("driver login token: %w", err)
	}
	return &AcceptResult{
		OrderID:     orderID,
		DriverID:    d.ID,
		RedirectURL: s.config.DriverAppURL + "/driver/auto-login?token=" + url.QueryEscape(token),
	}, nil
}

func (s *Service) publish(ctx context.Context, o *order.Order) {
	events := o.PullDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	for _, event := range events {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish order event",
				zap.String("order_id", o.ID.String()),
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}

func offerText(o *order.Order, storeName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛵 <b>New order %s</b>\n", shortID(o.ID))
	if storeName != "" {
		fmt.Fprintf(&b, "Pickup: %s\n", html.EscapeString(storeName))
	}
	fmt.Fprintf(&b, "Deliver to: %s\n", html.EscapeString(o.Customer.Address))
	fmt.Fprintf(&b, "Items: %d\nTotal: %s TND (%s)", o.ItemCount(), o.TotalPrice.StringFixed(3), o.PaymentMethod)
	return b.String()
}

func shortID(id uuid.UUID) string {
	return "#" + strings.ToUpper(id.String()[:8])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
