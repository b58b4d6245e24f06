package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// DriverCounter reports how many drivers are currently available.
type DriverCounter interface {
	CountAvailable(ctx context.Context) (int64, error)
}

// DeliveryMetrics holds the business instruments of the marketplace.
// All record methods are safe to call on a nil receiver.
type DeliveryMetrics struct {
	ordersCreated *Counter
	orderAmount   *Counter
	orderStatus   *Counter
	payments      *Counter
	offers        *Counter
	accepted      *Counter
	refused       *Counter
	timeouts      *Counter
	exhausted     *Counter
	dispatchWait  *Histogram
	jobRows       *Counter
	driversGauge  metric.Int64ObservableGauge
	registration  metric.Registration
}

// NewDeliveryMetrics registers the delivery instruments on meter. When
// drivers is non-nil an observable gauge of available drivers is registered.
func NewDeliveryMetrics(meter metric.Meter, drivers DriverCounter) (*DeliveryMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &DeliveryMetrics{}
	counters := []struct {
		target **Counter
		name   string
		desc   string
		unit   string
	}{
		{&m.ordersCreated, "orders.created", "Orders placed", "{order}"},
		{&m.orderAmount, "orders.amount", "Order totals in millimes", "{millime}"},
		{&m.orderStatus, "orders.status_changes", "Order status transitions", "{transition}"},
		{&m.payments, "payments", "Online payment outcomes", "{payment}"},
		{&m.offers, "dispatch.offers", "Offers sent to drivers", "{offer}"},
		{&m.accepted, "dispatch.accepted", "Offers accepted by a driver", "{offer}"},
		{&m.refused, "dispatch.refused", "Offers refused by a driver", "{offer}"},
		{&m.timeouts, "dispatch.timeouts", "Offers that expired unanswered", "{offer}"},
		{&m.exhausted, "dispatch.exhausted", "Orders with no driver left to offer", "{order}"},
		{&m.jobRows, "maintenance.rows", "Rows handled by maintenance jobs", "{row}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	wait, err := NewHistogram(meter, HistogramOpts{
		Name:        "dispatch.wait",
		Description: "Time from order creation to driver acceptance",
		Unit:        "s",
		Boundaries:  DispatchWaitBuckets,
	})
	if err != nil {
		return nil, err
	}
	m.dispatchWait = wait

	if drivers != nil {
		gauge, err := meter.Int64ObservableGauge("drivers.available",
			metric.WithDescription("Drivers currently available for dispatch"),
			metric.WithUnit("{driver}"))
		if err != nil {
			return nil, err
		}
		reg, err := meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			n, err := drivers.CountAvailable(ctx)
			if err != nil {
				return err
			}
			o.ObserveInt64(gauge, n)
			return nil
		}, gauge)
		if err != nil {
			return nil, err
		}
		m.driversGauge = gauge
		m.registration = reg
	}
	return m, nil
}

// Close unregisters the observable gauge callback.
func (m *DeliveryMetrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

// RecordOrderCreated counts a placed order and its total.
func (m *DeliveryMetrics) RecordOrderCreated(ctx context.Context, restaurantID, paymentMethod string, amountMillimes int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrRestaurantID.String(restaurantID), AttrPaymentMethod.String(paymentMethod)}
	m.ordersCreated.Inc(ctx, attrs...)
	m.orderAmount.Add(ctx, amountMillimes, attrs...)
}

// RecordStatusChange counts an order entering status.
func (m *DeliveryMetrics) RecordStatusChange(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.orderStatus.Inc(ctx, AttrOrderStatus.String(status))
}

// RecordPayment counts a payment outcome.
func (m *DeliveryMetrics) RecordPayment(ctx context.Context, method, status string) {
	if m == nil {
		return
	}
	m.payments.Inc(ctx, AttrPaymentMethod.String(method), AttrPaymentStatus.String(status))
}

// RecordOffer counts an offer sent over channel.
func (m *DeliveryMetrics) RecordOffer(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.offers.Inc(ctx, AttrChannel.String(channel))
}

// RecordAccepted counts an accepted offer and how long the order waited.
func (m *DeliveryMetrics) RecordAccepted(ctx context.Context, wait time.Duration) {
	if m == nil {
		return
	}
	m.accepted.Inc(ctx)
	if wait > 0 {
		m.dispatchWait.RecordDuration(ctx, wait)
	}
}

// RecordRefused counts a refused offer.
func (m *DeliveryMetrics) RecordRefused(ctx context.Context) {
	if m == nil {
		return
	}
	m.refused.Inc(ctx)
}

// RecordTimeout counts an offer that expired.
func (m *DeliveryMetrics) RecordTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.timeouts.Inc(ctx)
}

// RecordExhausted counts an order that ran out of candidate drivers.
func (m *DeliveryMetrics) RecordExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.exhausted.Inc(ctx)
}

// RecordJob adds a maintenance job's row counts, one series per outcome.
func (m *DeliveryMetrics) RecordJob(ctx context.Context, job string, updated, skipped, failed int) {
	if m == nil {
		return
	}
	for outcome, n := range map[string]int{"updated": updated, "skipped": skipped, "failed": failed} {
		if n > 0 {
			m.jobRows.Add(ctx, int64(n), AttrJob.String(job), attribute.String("outcome", outcome))
		}
	}
}
