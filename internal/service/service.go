// Package service implements the reservation and waitlist engine: the
// availability calculator, the admission controller, the waitlist manager
// and the sweeper that applies time-based transitions.  Every multi-step
// operation runs in one store transaction; notification events collected
// during the transaction are published only after it commits.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// DefaultQuotaLimit is the number of concurrently active reservations a user
// may hold.
const DefaultQuotaLimit = 2

// Options tunes the engine.
type Options struct {
	// QuotaLimit caps active reservations per user; <= 0 means DefaultQuotaLimit.
	QuotaLimit int
	// HoldTTL reserves a freed slot for the promoted waitlist user.  Zero
	// disables holds and promotion only grants first-refusal visibility.
	HoldTTL time.Duration
	// Location is the time zone in which calendar dates, opening hours and
	// session windows are interpreted.  Defaults to UTC.
	Location *time.Location
	// Now is the engine clock.  Defaults to time.Now.
	Now func() time.Time
}

// Notifier receives events after commit.  Publish must not block on
// delivery and must swallow its own failures.
type Notifier interface {
	Publish(ctx context.Context, ev queue.NotificationEvent)
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) Publish(context.Context, queue.NotificationEvent) {}

// Engine bundles the engine components over one store.
type Engine struct {
	Availability *Availability
	Admission    *Admission
	Waitlist     *Waitlist
	Sweeper      *Sweeper
}

// New wires the engine components.  A nil notifier drops events.
func New(store *database.Store, opts Options, notifier Notifier, log zerolog.Logger) *Engine {
	if opts.QuotaLimit <= 0 {
		opts.QuotaLimit = DefaultQuotaLimit
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	db := store.DB()
	c := &core{
		store:         store,
		facilities:    repository.NewFacilityRepo(db),
		sessions:      repository.NewSessionRepo(db),
		reservations:  repository.NewReservationRepo(db),
		entries:       repository.NewWaitlistRepo(db),
		notifications: repository.NewNotificationRepo(db),
		notifier:      notifier,
		opts:          opts,
		log:           log,
	}
	wl := &Waitlist{c}
	return &Engine{
		Availability: &Availability{c},
		Admission:    &Admission{core: c, wl: wl},
		Waitlist:     wl,
		Sweeper:      &Sweeper{core: c, wl: wl},
	}
}

// core holds the dependencies shared by the components.
type core struct {
	store         *database.Store
	facilities    *repository.FacilityRepo
	sessions      *repository.SessionRepo
	reservations  *repository.ReservationRepo
	entries       *repository.WaitlistRepo
	notifications *repository.NotificationRepo
	notifier      Notifier
	opts          Options
	log           zerolog.Logger
}

// now returns the engine time in UTC, truncated to the store's precision.
func (c *core) now() time.Time {
	return c.opts.Now().UTC().Truncate(time.Microsecond)
}

func (c *core) holdsEnabled() bool { return c.opts.HoldTTL > 0 }

// parseDate parses a civil date in the engine location and returns its
// midnight.
func (c *core) parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, s, c.opts.Location)
	if err != nil {
		return time.Time{}, reject(CodeInvalidInput, "date must be formatted as YYYY-MM-DD")
	}
	return d, nil
}

// dateOf returns the civil date key of t in the engine location.
func (c *core) dateOf(t time.Time) string {
	return t.In(c.opts.Location).Format(model.DateLayout)
}

// loadSession returns the session when it exists, belongs to facilityID and
// is active.
func (c *core) loadSession(ctx context.Context, facilityID, sessionID uint64) (*model.Session, error) {
	s, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject(CodeNotFound, "session %d not found", sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.FacilityID != facilityID {
		return nil, reject(CodeNotFound, "session %d does not belong to facility %d", sessionID, facilityID)
	}
	if !s.IsActive {
		return nil, reject(CodeNotFound, "session %d is not active", sessionID)
	}
	return s, nil
}

func (c *core) loadFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	f, err := c.facilities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject(CodeNotFound, "facility %d not found", id)
		}
		return nil, fmt.Errorf("load facility: %w", err)
	}
	return f, nil
}

// message describes one notification: the inbox row and the broker event.
type message struct {
	userID        uint64
	event         string
	level         string
	title         string
	text          string
	link          string
	facilityID    uint64
	sessionID     *uint64
	reservationID *uint64
	date          string
}

// notifyTx writes the inbox row inside tx and returns the event to publish
// once tx has committed.
func (c *core) notifyTx(ctx context.Context, tx *sql.Tx, m message, now time.Time) (queue.NotificationEvent, error) {
	var link *string
	if m.link != "" {
		link = &m.link
	}
	n := &model.Notification{
		UserID:    m.userID,
		Title:     m.title,
		Message:   m.text,
		Type:      m.level,
		Link:      link,
		CreatedAt: now,
	}
	if err := c.notifications.CreateTx(ctx, tx, n); err != nil {
		return queue.NotificationEvent{}, fmt.Errorf("insert notification: %w", err)
	}
	return queue.NotificationEvent{
		EventID:       uuid.NewString(),
		Type:          m.event,
		UserID:        m.userID,
		Title:         m.title,
		Message:       m.text,
		Link:          link,
		FacilityID:    m.facilityID,
		SessionID:     m.sessionID,
		ReservationID: m.reservationID,
		Date:          m.date,
		OccurredAt:    now.Format(time.RFC3339),
	}, nil
}

// publish hands committed events to the notifier.  The request context may
// already be done by the time delivery happens, so its values are kept but
// its cancellation is dropped.
func (c *core) publish(ctx context.Context, events []queue.NotificationEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, ev := range events {
		c.notifier.Publish(ctx, ev)
		c.log.Debug().Str("event", ev.Type).Uint64("user_id", ev.UserID).Str("event_id", ev.EventID).Msg("notification queued")
	}
}
