package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// FacilityOption configures a seeded facility.
type FacilityOption func(*model.Facility)

// WithCapacity sets the facility capacity.
func WithCapacity(n uint32) FacilityOption { return func(f *model.Facility) { f.Capacity = n } }

// WithHours sets the opening hours of an hourly facility.
func WithHours(openHour, closeHour uint8) FacilityOption {
	return func(f *model.Facility) { f.OpenHour, f.CloseHour = openHour, closeHour }
}

// WithSessions switches the facility to session mode.
func WithSessions() FacilityOption { return func(f *model.Facility) { f.UsesSessions = true } }

// WithStatus sets the facility status.
func WithStatus(s string) FacilityOption { return func(f *model.Facility) { f.Status = s } }

// SeedFacility inserts an active hourly facility open 08:00-22:00 with
// capacity 1, modified by opts.
func (h *Harness) SeedFacility(tb testing.TB, name string, opts ...FacilityOption) *model.Facility {
	tb.Helper()
	f := &model.Facility{
		Name:      name,
		Capacity:  1,
		OpenHour:  8,
		CloseHour: 22,
		Status:    model.FacilityActive,
	}
	for _, opt := range opts {
		opt(f)
	}
	repo := repository.NewFacilityRepo(h.DB)
	h.inTx(tb, func(tx *sql.Tx) error { return repo.CreateTx(context.Background(), tx, f, h.Clock.Now().UTC()) })
	return f
}

// SessionOption configures a seeded session.
type SessionOption func(*model.Session)

// OnDays restricts the session to the given weekdays.
func OnDays(days ...int) SessionOption {
	return func(s *model.Session) {
		w, err := model.NewWeekdays(days...)
		if err != nil {
			panic(err)
		}
		s.DaysOfWeek = w
	}
}

// WithSessionCapacity gives the session its own capacity.
func WithSessionCapacity(n uint32) SessionOption {
	return func(s *model.Session) { s.Capacity = &n }
}

// Inactive marks the session inactive.
func Inactive() SessionOption { return func(s *model.Session) { s.IsActive = false } }

// SeedSession inserts an active session of facility f running every day
// from start to end ("HH:MM").
func (h *Harness) SeedSession(tb testing.TB, f *model.Facility, name, start, end string, opts ...SessionOption) *model.Session {
	tb.Helper()
	st, err := model.ParseTimeOfDay(start)
	if err != nil {
		tb.Fatalf("parse start: %v", err)
	}
	et, err := model.ParseTimeOfDay(end)
	if err != nil {
		tb.Fatalf("parse end: %v", err)
	}
	s := &model.Session{
		FacilityID: f.ID,
		Name:       name,
		StartTime:  st,
		EndTime:    et,
		DaysOfWeek: model.AllWeekdays,
		IsActive:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	repo := repository.NewSessionRepo(h.DB)
	h.inTx(tb, func(tx *sql.Tx) error { return repo.CreateTx(context.Background(), tx, s) })
	return s
}

func (h *Harness) inTx(tb testing.TB, fn func(tx *sql.Tx) error) {
	tb.Helper()
	if err := h.Store.WithTx(context.Background(), fn); err != nil {
		tb.Fatalf("seed: %v", err)
	}
}
