package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// WaitlistStatus describes the caller's place in a session instance's
// waitlist.  Position is set only while the entry is pending.
type WaitlistStatus struct {
	InWaitlist    bool       `json:"in_waitlist"`
	Position      *int       `json:"position,omitempty"`
	Status        string     `json:"status,omitempty"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

// Waitlist manages the FIFO queue of a session instance (session + date).
type Waitlist struct {
	*core
}

// Join queues the user for the session instance.  Joining never checks
// whether the instance is actually full.  A second pending entry for the
// same user, session and date is rejected with CONFLICT.
func (w *Waitlist) Join(ctx context.Context, userID, facilityID, sessionID uint64, date string) (*model.WaitlistEntry, error) {
	if userID == 0 {
		return nil, reject(CodeForbidden, "a user is required to join a waitlist")
	}
	day, err := w.parseDate(date)
	if err != nil {
		return nil, err
	}
	f, err := w.loadFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive() {
		return nil, reject(CodeForbidden, "facility %q is %s", f.Name, f.Status)
	}
	if !f.UsesSessions {
		return nil, reject(CodeInvalidInput, "facility %q is booked by the hour, not by session", f.Name)
	}
	s, err := w.loadSession(ctx, facilityID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.DaysOfWeek.Has(day.Weekday()) {
		return nil, reject(CodeInvalidInput, "session %q does not run on %s", s.Name, day.Weekday())
	}
	slotStart, slotEnd := s.Window(day)
	if !slotEnd.After(w.now()) {
		return nil, reject(CodeInvalidInput, "session %q on %s has already ended", s.Name, date)
	}

	e := &model.WaitlistEntry{
		UserID:     userID,
		FacilityID: facilityID,
		SessionID:  sessionID,
		Date:       date,
		SlotStart:  slotStart.UTC(),
		SlotEnd:    slotEnd.UTC(),
	}
	err = w.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := w.entries.FindPendingTx(ctx, tx, userID, sessionID, date)
		if err == nil {
			return reject(CodeConflict, "you are already on the waitlist for %q on %s", s.Name, date)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find pending entry: %w", err)
		}
		now := w.now()
		e.CreatedAt, e.UpdatedAt = now, now
		if err := w.entries.CreateTx(ctx, tx, e); err != nil {
			if database.IsDuplicateKey(err) {
				return reject(CodeConflict, "you are already on the waitlist for %q on %s", s.Name, date)
			}
			return fmt.Errorf("insert waitlist entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.log.Info().Uint64("entry_id", e.ID).Uint64("user_id", userID).Uint64("session_id", sessionID).Str("date", date).Msg("waitlist joined")
	return e, nil
}

// Leave cancels the user's pending entry for the session instance.  When the
// user has no pending entry but holds a promoted slot, the hold is released
// and the next user in line is promoted.  Leaving without an entry is a
// no-op.
func (w *Waitlist) Leave(ctx context.Context, userID, sessionID uint64, date string) error {
	if _, err := w.parseDate(date); err != nil {
		return err
	}
	var events []queue.NotificationEvent
	err := w.store.WithTx(ctx, func(tx *sql.Tx) error {
		events = events[:0]
		now := w.now()
		e, err := w.entries.FindPendingTx(ctx, tx, userID, sessionID, date)
		if err == nil {
			return w.entries.SetStatusTx(ctx, tx, e.ID, model.WaitlistCancelled, now)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find pending entry: %w", err)
		}

		e, err = w.entries.FindActiveHoldTx(ctx, tx, userID, sessionID, date, now)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find hold: %w", err)
		}
		if err := w.facilities.LockTx(ctx, tx, e.FacilityID); err != nil {
			return fmt.Errorf("lock facility: %w", err)
		}
		if err := w.entries.SetStatusTx(ctx, tx, e.ID, model.WaitlistCancelled, now); err != nil {
			return fmt.Errorf("release hold: %w", err)
		}
		if e.SlotEnd.After(now) {
			promoted, err := w.promoteTx(ctx, tx, e.FacilityID, e.SessionID, e.Date, now)
			if err != nil {
				return err
			}
			events = append(events, promoted...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.publish(ctx, events)
	return nil
}

// Status reports the user's most recent entry for the session instance.
// Position counts the pending entries strictly ahead of the user, plus one.
func (w *Waitlist) Status(ctx context.Context, userID, sessionID uint64, date string) (*WaitlistStatus, error) {
	if _, err := w.parseDate(date); err != nil {
		return nil, err
	}
	e, err := w.entries.Latest(ctx, userID, sessionID, date)
	if errors.Is(err, repository.ErrNotFound) {
		return &WaitlistStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load waitlist entry: %w", err)
	}
	st := &WaitlistStatus{Status: e.Status, JoinedAt: &e.CreatedAt}
	switch e.Status {
	case model.WaitlistPending:
		ahead, err := w.entries.CountAhead(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("count waitlist position: %w", err)
		}
		pos := ahead + 1
		st.InWaitlist, st.Position = true, &pos
	case model.WaitlistNotified:
		if e.HoldActive(w.now()) {
			st.HoldExpiresAt = e.HoldExpiresAt
		}
	}
	return st, nil
}

// ListForSession returns every entry of the session instance in queue order.
func (w *Waitlist) ListForSession(ctx context.Context, sessionID uint64, date string) ([]model.WaitlistEntry, error) {
	if _, err := w.parseDate(date); err != nil {
		return nil, err
	}
	if _, err := w.sessions.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reject(CodeNotFound, "session %d not found", sessionID)
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	out, err := w.entries.ListForSession(ctx, sessionID, date)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return out, nil
}

// MyWaitlistEntry is one of the caller's live queue entries.
type MyWaitlistEntry struct {
	Entry        model.WaitlistEntry
	FacilityName string
	SessionName  string
	Position     *int
}

// ListMine returns the user's pending and notified entries for session
// instances that have not ended yet, most recently joined first.  Pending
// entries carry their queue position.
func (w *Waitlist) ListMine(ctx context.Context, userID uint64) ([]MyWaitlistEntry, error) {
	ls, err := w.entries.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	now := w.now()
	out := make([]MyWaitlistEntry, 0, len(ls))
	for _, l := range ls {
		if !l.SlotEnd.After(now) {
			continue
		}
		item := MyWaitlistEntry{Entry: l.WaitlistEntry, FacilityName: l.FacilityName, SessionName: l.SessionName}
		if l.Status == model.WaitlistPending {
			ahead, err := w.entries.CountAhead(ctx, &l.WaitlistEntry)
			if err != nil {
				return nil, fmt.Errorf("count waitlist position: %w", err)
			}
			pos := ahead + 1
			item.Position = &pos
		} else if !l.HoldActive(now) {
			item.Entry.HoldExpiresAt = nil
		}
		out = append(out, item)
	}
	return out, nil
}

// promoteTx notifies the head of the session instance's queue that a slot
// opened.  With holds enabled the slot is reserved for that user until the
// hold expires; otherwise the user only learns about the slot first.  It
// never creates a reservation.  The caller must hold the facility lock.
func (w *Waitlist) promoteTx(ctx context.Context, tx *sql.Tx, facilityID, sessionID uint64, date string, now time.Time) ([]queue.NotificationEvent, error) {
	e, err := w.entries.NextPendingTx(ctx, tx, sessionID, date)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find next waitlist entry: %w", err)
	}
	var hold *time.Time
	if w.holdsEnabled() {
		t := now.Add(w.opts.HoldTTL)
		hold = &t
	}
	if err := w.entries.MarkNotifiedTx(ctx, tx, e.ID, now, hold); err != nil {
		return nil, fmt.Errorf("promote waitlist entry: %w", err)
	}

	name := "your session"
	if s, err := w.sessions.GetByIDTx(ctx, tx, sessionID); err == nil {
		name = s.Name
	}
	text := fmt.Sprintf("A spot opened up in %s on %s. Book it now.", name, date)
	if hold != nil {
		text = fmt.Sprintf("A spot opened up in %s on %s. It is held for you until %s.", name, date, w.clock(*hold))
	}
	ev, err := w.notifyTx(ctx, tx, message{
		userID:     e.UserID,
		event:      queue.SlotOpened,
		level:      model.NotificationSuccess,
		title:      "A slot opened up",
		text:       text,
		link:       fmt.Sprintf("/sessions/%d/waitlist?date=%s", sessionID, date),
		facilityID: facilityID,
		sessionID:  &sessionID,
		date:       date,
	}, now)
	if err != nil {
		return nil, err
	}
	w.log.Info().Uint64("entry_id", e.ID).Uint64("user_id", e.UserID).Uint64("session_id", sessionID).Str("date", date).Msg("waitlist entry promoted")
	return []queue.NotificationEvent{ev}, nil
}
