package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
)

// SweepResult counts the transitions applied by one sweep.
type SweepResult struct {
	Completed    int64 `json:"completed"`
	HoldsExpired int   `json:"holds_expired"`
	Promoted     int   `json:"promoted"`
	QueueExpired int64 `json:"queue_expired"`
}

// Sweeper applies the time-based transitions: approved reservations that
// have ended become completed, expired holds release their slot to the next
// user in line, and queue entries for slots that have already ended expire.
type Sweeper struct {
	*core
	wl *Waitlist
}

// Sweep runs one pass in a single transaction.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		result SweepResult
		events []queue.NotificationEvent
	)
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		result, events = SweepResult{}, events[:0]
		now := s.now()

		n, err := s.reservations.CompleteEndedTx(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("complete reservations: %w", err)
		}
		result.Completed = n

		expired, err := s.entries.ExpiredHoldsTx(ctx, tx, now)
		if err != nil {
			return fmt.Errorf("list expired holds: %w", err)
		}
		for _, e := range expired {
			if err := s.facilities.LockTx(ctx, tx, e.FacilityID); err != nil {
				return fmt.Errorf("lock facility: %w", err)
			}
			if err := s.entries.SetStatusTx(ctx, tx, e.ID, model.WaitlistExpired, now); err != nil {
				return fmt.Errorf("expire hold: %w", err)
			}
			result.HoldsExpired++
			sessionID := e.SessionID
			ev, err := s.notifyTx(ctx, tx, message{
				userID:     e.UserID,
				event:      queue.HoldExpired,
				level:      model.NotificationWarning,
				title:      "Your held spot expired",
				text:       fmt.Sprintf("The spot held for you on %s was released because it was not booked in time.", e.Date),
				link:       fmt.Sprintf("/sessions/%d/waitlist?date=%s", e.SessionID, e.Date),
				facilityID: e.FacilityID,
				sessionID:  &sessionID,
				date:       e.Date,
			}, now)
			if err != nil {
				return err
			}
			events = append(events, ev)

			if e.SlotEnd.After(now) {
				promoted, err := s.wl.promoteTx(ctx, tx, e.FacilityID, e.SessionID, e.Date, now)
				if err != nil {
					return err
				}
				result.Promoted += len(promoted)
				events = append(events, promoted...)
			}
		}

		if result.QueueExpired, err = s.entries.ExpireEndedPendingTx(ctx, tx, now); err != nil {
			return fmt.Errorf("expire waitlist entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	s.publish(ctx, events)
	return result, nil
}

// Run sweeps every interval until ctx is done.  Failures are logged and the
// next tick tries again.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if res != (SweepResult{}) {
				s.log.Info().Int64("completed", res.Completed).Int("holds_expired", res.HoldsExpired).
					Int("promoted", res.Promoted).Int64("queue_expired", res.QueueExpired).Msg("sweep applied")
			}
		}
	}
}
