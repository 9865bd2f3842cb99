package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

// AdmitRequest asks for a reservation.  SessionID is required for
// session-mode facilities and must be nil for hourly facilities.
type AdmitRequest struct {
	UserID     uint64
	FacilityID uint64
	SessionID  *uint64
	Start      time.Time
	End        time.Time
}

// Admission validates booking requests and admits them under capacity.
type Admission struct {
	*core
	wl *Waitlist
}

// Admit validates req and, when the facility has room for the interval,
// inserts an approved reservation.  Validation failures are reported before
// any write.  The capacity count and the insert run in one transaction
// holding the facility row lock, so concurrent admissions for the same
// interval can never overfill the facility; a request that loses the race
// receives CAPACITY_EXCEEDED.
func (a *Admission) Admit(ctx context.Context, req AdmitRequest) (*model.Reservation, error) {
	if req.UserID == 0 {
		return nil, reject(CodeForbidden, "a user is required to book")
	}
	start, end := req.Start.UTC().Truncate(time.Microsecond), req.End.UTC().Truncate(time.Microsecond)
	if !start.Before(end) {
		return nil, reject(CodeInvalidInput, "start time must be before end time")
	}
	f, err := a.loadFacility(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive() {
		return nil, reject(CodeForbidden, "facility %q is %s", f.Name, f.Status)
	}

	var session *model.Session
	if req.SessionID != nil {
		if session, err = a.loadSession(ctx, f.ID, *req.SessionID); err != nil {
			return nil, err
		}
		if err := a.checkSessionWindow(f, session, start, end); err != nil {
			return nil, err
		}
	} else if err := a.checkOpeningHours(f, start, end); err != nil {
		return nil, err
	}

	res := &model.Reservation{
		UserID:     req.UserID,
		FacilityID: f.ID,
		SessionID:  req.SessionID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.ReservationApproved,
	}
	var events []queue.NotificationEvent
	err = a.store.WithTx(ctx, func(tx *sql.Tx) error {
		events = events[:0]
		now := a.now()
		if err := a.facilities.LockTx(ctx, tx, f.ID); err != nil {
			return fmt.Errorf("lock facility: %w", err)
		}
		// Re-read under the lock: capacity and status may have changed since validation.
		locked, err := a.facilities.GetByIDTx(ctx, tx, f.ID)
		if err != nil {
			return fmt.Errorf("load facility: %w", err)
		}
		if !locked.IsActive() {
			return reject(CodeForbidden, "facility %q is %s", locked.Name, locked.Status)
		}

		active, err := a.reservations.CountActiveByUserTx(ctx, tx, req.UserID, now)
		if err != nil {
			return fmt.Errorf("count user reservations: %w", err)
		}
		if active >= a.opts.QuotaLimit {
			return &Rejection{
				Code:    CodeQuotaExceeded,
				Message: fmt.Sprintf("you already have %d active reservations; the limit is %d", active, a.opts.QuotaLimit),
				Limit:   a.opts.QuotaLimit,
			}
		}

		if err := a.checkCapacityTx(ctx, tx, locked, session, req.UserID, start, end, now); err != nil {
			return err
		}

		res.CreatedAt, res.UpdatedAt = now, now
		if err := a.reservations.CreateTx(ctx, tx, res); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		date := a.dateOf(start)
		if session != nil {
			if _, err := a.entries.ConvertForUserTx(ctx, tx, req.UserID, session.ID, date, now); err != nil {
				return fmt.Errorf("convert waitlist entry: %w", err)
			}
		}
		ev, err := a.notifyTx(ctx, tx, message{
			userID:        req.UserID,
			event:         queue.ReservationConfirmed,
			level:         model.NotificationSuccess,
			title:         "Reservation confirmed",
			text:          fmt.Sprintf("Your reservation at %s on %s from %s is confirmed.", locked.Name, date, a.clock(start)),
			link:          fmt.Sprintf("/reservations/%d", res.ID),
			facilityID:    f.ID,
			sessionID:     req.SessionID,
			reservationID: &res.ID,
			date:          date,
		}, now)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info().Uint64("reservation_id", res.ID).Uint64("user_id", res.UserID).Uint64("facility_id", res.FacilityID).
		Time("start", res.StartTime).Msg("reservation admitted")
	a.publish(ctx, events)
	return res, nil
}

// checkCapacityTx rejects the interval when the overlapping reservations and
// other users' active holds already fill the facility, or the session when
// the session carries its own capacity.
func (a *Admission) checkCapacityTx(ctx context.Context, tx *sql.Tx, f *model.Facility, s *model.Session, userID uint64, start, end, now time.Time) error {
	full := func(scope *uint64, capacity int) (bool, error) {
		n, err := a.reservations.CountOverlappingTx(ctx, tx, f.ID, scope, start, end)
		if err != nil {
			return false, fmt.Errorf("count overlapping reservations: %w", err)
		}
		if a.holdsEnabled() {
			h, err := a.entries.CountHoldsOverlappingTx(ctx, tx, f.ID, scope, userID, start, end, now)
			if err != nil {
				return false, fmt.Errorf("count holds: %w", err)
			}
			n += h
		}
		return n >= capacity, nil
	}

	rejection := &Rejection{Code: CodeCapacityExceeded, Message: fmt.Sprintf("%s is full at the requested time", f.Name)}
	if s != nil {
		rejection.Remediation = RemediationJoinWaitlist
	}
	isFull, err := full(nil, int(f.Capacity))
	if err != nil {
		return err
	}
	if isFull {
		return rejection
	}
	if s != nil && s.Capacity != nil {
		if isFull, err = full(&s.ID, int(*s.Capacity)); err != nil {
			return err
		}
		if isFull {
			rejection.Message = fmt.Sprintf("session %q is full on %s", s.Name, a.dateOf(start))
			return rejection
		}
	}
	return nil
}

// checkSessionWindow requires a session-mode facility, a date on which the
// session recurs and an interval equal to the session window on that date.
func (a *Admission) checkSessionWindow(f *model.Facility, s *model.Session, start, end time.Time) error {
	if !f.UsesSessions {
		return reject(CodeInvalidInput, "facility %q is booked by the hour, not by session", f.Name)
	}
	local := start.In(a.opts.Location)
	if !s.DaysOfWeek.Has(local.Weekday()) {
		return reject(CodeInvalidInput, "session %q does not run on %s", s.Name, local.Weekday())
	}
	ws, we := s.Window(local)
	if !ws.Equal(start) || !we.Equal(end) {
		return reject(CodeInvalidInput, "session %q runs from %s to %s", s.Name, s.StartTime, s.EndTime)
	}
	return nil
}

// checkOpeningHours requires an hourly facility and an interval inside
// [open_hour, close_hour) of the start's calendar day.
func (a *Admission) checkOpeningHours(f *model.Facility, start, end time.Time) error {
	if f.UsesSessions {
		return reject(CodeInvalidInput, "facility %q must be booked by session", f.Name)
	}
	local := start.In(a.opts.Location)
	y, m, d := local.Date()
	open := time.Date(y, m, d, int(f.OpenHour), 0, 0, 0, a.opts.Location)
	closing := time.Date(y, m, d, int(f.CloseHour), 0, 0, 0, a.opts.Location)
	if start.Before(open) || end.After(closing) {
		return reject(CodeInvalidInput, "facility %q is open from %02d:00 to %02d:00", f.Name, f.OpenHour, f.CloseHour)
	}
	return nil
}

// Cancel cancels one of the user's reservations.  For session reservations
// the head of the session instance's waitlist is promoted in the same
// transaction.
func (a *Admission) Cancel(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	var (
		res    *model.Reservation
		events []queue.NotificationEvent
	)
	err := a.store.WithTx(ctx, func(tx *sql.Tx) error {
		events = events[:0]
		now := a.now()
		var err error
		res, err = a.reservations.GetByIDTx(ctx, tx, reservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return reject(CodeNotFound, "reservation %d not found", reservationID)
		}
		if err != nil {
			return fmt.Errorf("load reservation: %w", err)
		}
		if res.UserID != userID {
			return reject(CodeForbidden, "reservation %d belongs to another user", reservationID)
		}
		if err := a.facilities.LockTx(ctx, tx, res.FacilityID); err != nil {
			return fmt.Errorf("lock facility: %w", err)
		}
		if !res.IsActive() {
			return reject(CodeInvalidInput, "reservation %d is already %s", reservationID, res.Status)
		}
		if err := a.reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationCancelled, now); err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		res.Status, res.UpdatedAt = model.ReservationCancelled, now

		date := a.dateOf(res.StartTime)
		ev, err := a.notifyTx(ctx, tx, message{
			userID:        userID,
			event:         queue.ReservationCancelled,
			level:         model.NotificationInfo,
			title:         "Reservation cancelled",
			text:          fmt.Sprintf("Your reservation on %s from %s has been cancelled.", date, a.clock(res.StartTime)),
			link:          fmt.Sprintf("/reservations/%d", res.ID),
			facilityID:    res.FacilityID,
			sessionID:     res.SessionID,
			reservationID: &res.ID,
			date:          date,
		}, now)
		if err != nil {
			return err
		}
		events = append(events, ev)

		if res.SessionID != nil && res.EndTime.After(now) {
			promoted, err := a.wl.promoteTx(ctx, tx, res.FacilityID, *res.SessionID, date, now)
			if err != nil {
				return err
			}
			events = append(events, promoted...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info().Uint64("reservation_id", res.ID).Uint64("user_id", userID).Msg("reservation cancelled")
	a.publish(ctx, events)
	return res, nil
}

// ListMine returns the user's reservations, latest start first.
func (a *Admission) ListMine(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out, err := a.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// ListForFacility returns the reservations of a facility, optionally
// restricted to those starting on date.
func (a *Admission) ListForFacility(ctx context.Context, facilityID uint64, date string) ([]model.Reservation, error) {
	if _, err := a.loadFacility(ctx, facilityID); err != nil {
		return nil, err
	}
	var from, to time.Time
	if date != "" {
		day, err := a.parseDate(date)
		if err != nil {
			return nil, err
		}
		from, to = day, day.AddDate(0, 0, 1)
	}
	out, err := a.reservations.ListByFacility(ctx, facilityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// clock formats the wall-clock time of t in the engine location.
func (c *core) clock(t time.Time) string {
	return t.In(c.opts.Location).Format("15:04")
}
