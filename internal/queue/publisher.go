package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("queue: publisher closed")

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// PublisherOptions tunes buffering and the circuit breaker.
type PublisherOptions struct {
	Buffer           int           // events waiting for the broker; further events are dropped
	PublishTimeout   time.Duration // per-message broker timeout
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open
}

// DefaultPublisherOptions returns the options used by Dial.
func DefaultPublisherOptions() PublisherOptions {
	return PublisherOptions{
		Buffer:           1024,
		PublishTimeout:   5 * time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Publisher sends notification events to the topic exchange.  Publish only
// enqueues; a single worker delivers in order.  Broker failures are logged
// and never reach the caller.
type Publisher struct {
	ch      channel
	conn    io.Closer
	opts    PublisherOptions
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	events chan NotificationEvent
	done   chan struct{}

	// shut is set once the buffer has drained and the channel is closing.
	shut atomic.Bool
}

// Dial connects to the broker at url and declares the exchange.
func Dial(url string, opts PublisherOptions, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	log.Info().Str("exchange", Exchange).Msg("notification publisher connected")
	return newPublisher(ch, conn, opts, log), nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func newPublisher(ch channel, conn io.Closer, opts PublisherOptions, log zerolog.Logger) *Publisher {
	def := DefaultPublisherOptions()
	if opts.Buffer <= 0 {
		opts.Buffer = def.Buffer
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = def.PublishTimeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = def.FailureThreshold
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = def.OpenTimeout
	}
	p := &Publisher{
		ch:     ch,
		conn:   conn,
		opts:   opts,
		log:    log,
		events: make(chan NotificationEvent, opts.Buffer),
		done:   make(chan struct{}),
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	go p.run()
	return p
}

// Publish enqueues ev for delivery.  It never blocks; when the buffer is
// full or the publisher is closed the event is dropped.
func (p *Publisher) Publish(_ context.Context, ev NotificationEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn().Str("event_id", ev.EventID).Msg("publisher closed, notification dropped")
		return
	}
	select {
	case p.events <- ev:
	default:
		p.log.Warn().Str("event_id", ev.EventID).Str("type", ev.Type).Msg("publish buffer full, notification dropped")
	}
}

// Send delivers ev synchronously through the breaker.  After Close it
// returns ErrClosed without touching the broker.
func (p *Publisher) Send(ctx context.Context, ev NotificationEvent) error {
	if p.shut.Load() {
		return ErrClosed
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = p.breaker.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
		defer cancel()
		return struct{}{}, p.ch.PublishWithContext(ctx, Exchange, ev.Type, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID,
			Type:         ev.Type,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	})
	return err
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.events {
		if err := p.Send(context.Background(), ev); err != nil {
			p.log.Error().Err(err).Str("event_id", ev.EventID).Str("type", ev.Type).Msg("publish notification failed")
			continue
		}
		p.log.Debug().Str("event_id", ev.EventID).Str("type", ev.Type).Msg("notification published")
	}
}

// Close drains buffered events and closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	p.shut.Store(true)
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
