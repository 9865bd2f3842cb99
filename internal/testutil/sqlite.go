// Package testutil provides a migrated SQLite store, a controllable clock
// and catalog fixtures for integration-style tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// Harness bundles a temporary SQLite database with the engine
// dependencies tests need.
type Harness struct {
	DB       *sql.DB
	Store    *database.Store
	Clock    *Clock
	Notifier *RecordingNotifier
}

// NewHarness opens a migrated SQLite database in a temporary directory. The
// database is closed through tb.Cleanup.
func NewHarness(tb testing.TB) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "facility.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		tb.Fatalf("migrate sqlite: %v", err)
	}
	return &Harness{
		DB:       db,
		Store:    database.NewStore(db, database.SQLite),
		Clock:    NewClock(ReferenceTime),
		Notifier: &RecordingNotifier{},
	}
}

// Engine builds an engine on the harness store.  The harness clock and
// notifier are used unless opts overrides the clock.
func (h *Harness) Engine(opts service.Options) *service.Engine {
	if opts.Now == nil {
		opts.Now = h.Clock.Now
	}
	return service.New(h.Store, opts, h.Notifier, zerolog.Nop())
}

// RecordingNotifier keeps every published event in memory.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
}

// Publish records ev.
func (n *RecordingNotifier) Publish(_ context.Context, ev queue.NotificationEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (n *RecordingNotifier) Events() []queue.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]queue.NotificationEvent(nil), n.events...)
}

// OfType returns the recorded events with the given routing key.
func (n *RecordingNotifier) OfType(typ string) []queue.NotificationEvent {
	var out []queue.NotificationEvent
	for _, ev := range n.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
