// Package messaging fans order events out to RabbitMQ.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/delivery/backend/internal/domain/order"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher errors
var (
	ErrPublishNack    = errors.New("messaging: broker refused publish")
	ErrChannelClosed  = errors.New("messaging: confirm channel closed")
	ErrMissingAMQPURL = errors.New("messaging: AMQP URL is required")
)

const routingKeyPrefix = "order."

// channel is the part of *amqp.Channel the publisher needs
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Serializer encodes events into the wire envelope
type Serializer interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
}

// Publisher publishes order events to a topic exchange with publisher
// confirms. It is registered on the event bus as a handler.
type Publisher struct {
	ch         channel
	acks       <-chan amqp.Confirmation
	conn       io.Closer
	exchange   string
	serializer Serializer
	logger     *zap.Logger

	mu sync.Mutex
}

// Dial connects to the broker, enables confirms and declares the exchange
func Dial(cfg config.MessagingConfig, serializer Serializer, logger *zap.Logger) (*Publisher, error) {
	if cfg.AMQPURL == "" {
		return nil, ErrMissingAMQPURL
	}
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	p, err := newPublisher(ch, acks, conn, cfg.Exchange, serializer, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.logger.Info("AMQP publisher connected", zap.String("exchange", p.exchange))
	return p, nil
}

func newPublisher(ch channel, acks <-chan amqp.Confirmation, conn io.Closer, exchange string, serializer Serializer, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = "orders_topic"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("messaging: declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		ch:         ch,
		acks:       acks,
		conn:       conn,
		exchange:   exchange,
		serializer: serializer,
		logger:     logger,
	}, nil
}

// EventTypes returns the order events that are fanned out
func (p *Publisher) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderStatusChanged,
		order.EventTypeOrderDriverAssigned,
	}
}

// Handle publishes event with routing key order.<event_type>
func (p *Publisher) Handle(ctx context.Context, event shared.DomainEvent) error {
	body, err := p.serializer.Serialize(event)
	if err != nil {
		return err
	}
	key := RoutingKey(event.EventType())
	if err := p.publish(ctx, key, event.EventID().String(), body); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.logger.Debug("event published",
		zap.String("routing_key", key),
		zap.String("event_id", event.EventID().String()))
	return nil
}

// RoutingKey returns the topic routing key for an event type
func RoutingKey(eventType string) string {
	return routingKeyPrefix + eventType
}

// publish sends one message and waits for the broker confirm. Publishes are
// serialized so each confirm matches its message.
func (p *Publisher) publish(ctx context.Context, key, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return err
	}

	select {
	case conf, ok := <-p.acks:
		if !ok {
			return ErrChannelClosed
		}
		if !conf.Ack {
			return ErrPublishNack
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel and connection
func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

var _ shared.EventHandler = (*Publisher)(nil)
