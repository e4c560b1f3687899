// Package broker publishes booking events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchange = "cinebook.bookings"

const (
	defaultDialTimeout    = 2 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultRetryBackoff   = 5 * time.Second
	defaultBufferSize     = 256
)

var (
	ErrClosed     = errors.New("broker: publisher closed")
	ErrBufferFull = errors.New("broker: event buffer full")

	errUnavailable = errors.New("broker: unavailable, waiting to reconnect")
)

type Config struct {
	URL string
	// DialTimeout bounds the TCP connect and the AMQP handshake.
	DialTimeout    time.Duration
	PublishTimeout time.Duration
	// RetryBackoff is how long events are dropped without dialling after
	// a failed connection attempt.
	RetryBackoff time.Duration
	BufferSize   int
}

type message struct {
	routingKey string
	ev         BookingEvent
}

// Publisher sends events to a durable topic exchange. Publish calls only
// queue the event; Run delivers them. The connection is opened lazily by
// Run and re-dialled after it drops.
type Publisher struct {
	cfg   Config
	log   *slog.Logger
	queue chan message

	closed atomic.Bool

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
}

func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}

	return &Publisher{
		cfg:   cfg,
		log:   log,
		queue: make(chan message, cfg.BufferSize),
	}
}

// PublishBookingCreated queues ev for delivery. It never waits for the
// broker and fails with ErrBufferFull when the queue is full.
func (p *Publisher) PublishBookingCreated(_ context.Context, ev BookingEvent) error {
	return p.enqueue(RoutingBookingCreated, ev)
}

func (p *Publisher) PublishBookingDeleted(_ context.Context, ev BookingEvent) error {
	return p.enqueue(RoutingBookingDeleted, ev)
}

func (p *Publisher) enqueue(routingKey string, ev BookingEvent) error {
	if p.closed.Load() {
		return ErrClosed
	}

	select {
	case p.queue <- message{routingKey: routingKey, ev: ev}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers queued events until ctx is cancelled, then makes one
// bounded attempt to flush what is left. Events that cannot be delivered
// are logged and dropped.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx))
			return nil
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		}
	}
}

func (p *Publisher) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	for {
		select {
		case msg := <-p.queue:
			p.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, msg message) {
	if err := p.send(ctx, msg); err != nil {
		p.log.Warn("booking event dropped",
			"routing_key", msg.routingKey,
			"booking_id", msg.ev.BookingID,
			"err", err,
		)
	}
}

func (p *Publisher) send(ctx context.Context, msg message) error {
	const op = "broker.Publisher.send"

	body, err := json.Marshal(msg.ev)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		exchange,
		msg.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ev.BookingID.String(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// channel returns an open channel, dialling when needed. Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.reset()

	if time.Now().Before(p.retryAt) {
		return nil, errUnavailable
	}

	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.cfg.DialTimeout),
	})
	if err != nil {
		p.retryAt = time.Now().Add(p.cfg.RetryBackoff)
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.retryAt = time.Now().Add(p.cfg.RetryBackoff)
		return nil, fmt.Errorf("channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.retryAt = time.Now().Add(p.cfg.RetryBackoff)
		return nil, fmt.Errorf("exchange declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.log.Info("rabbitmq connected", "exchange", exchange)

	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close stops accepting events and drops the connection. Events still
// queued are discarded; Run flushes them when its context ends first.
func (p *Publisher) Close() error {
	p.closed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.reset()

	return nil
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishBookingCreated(context.Context, BookingEvent) error { return nil }
func (Nop) PublishBookingDeleted(context.Context, BookingEvent) error { return nil }
