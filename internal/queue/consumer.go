package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultLogQueue is the durable queue bound to every routing key of the
// notification exchange.
const DefaultLogQueue = "facility.notifications.log"

// Consumer appends every delivered notification to a log file, one line
// per event.
type Consumer struct {
	URL     string
	Queue   string
	LogPath string
	Log     zerolog.Logger

	mu sync.Mutex
}

// NewConsumer returns a consumer writing to logs/notifications.log.
func NewConsumer(url string, log zerolog.Logger) *Consumer {
	return &Consumer{
		URL:     url,
		Queue:   DefaultLogQueue,
		LogPath: filepath.Join("logs", "notifications.log"),
		Log:     log,
	}
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer func() { _ = conn.Close() }()
		b.Reset()
		return c.consume(ctx, conn)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		c.Log.Warn().Err(err).Dur("retry_in", wait).Msg("notification consumer disconnected")
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("set QoS failed")
	}
	if err := declareExchange(ch); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(c.Queue, "#", Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.Log.Info().Str("queue", c.Queue).Msg("notification consumer started")

	for {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.Log.Error().Err(err).Msg("handle notification failed")
				// Malformed messages would loop forever if requeued.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev NotificationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.UserID == 0 {
		return fmt.Errorf("incomplete event %q", ev.EventID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as a single human-readable log line.
func FormatLine(ev NotificationEvent) string {
	session, reservation := "-", "-"
	if ev.SessionID != nil {
		session = strconv.FormatUint(*ev.SessionID, 10)
	}
	if ev.ReservationID != nil {
		reservation = strconv.FormatUint(*ev.ReservationID, 10)
	}
	date := ev.Date
	if date == "" {
		date = "-"
	}
	return fmt.Sprintf("[%s] %s | event_id=%s | user_id=%d | facility_id=%d | session_id=%s | reservation_id=%s | date=%s | title=%q\n",
		ev.OccurredAt, ev.Type, ev.EventID, ev.UserID, ev.FacilityID, session, reservation, date, ev.Title)
}
