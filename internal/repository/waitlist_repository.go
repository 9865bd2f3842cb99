package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// WaitlistRepo provides persistence for waitlist entries.  A promoted entry
// may carry a hold expiry after which the freed slot is released again.
// pending_key is kept non-null only while an entry is pending and is
// cleared by every status change.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, user_id, facility_id, session_id, wait_date, slot_start, slot_end, status, notified_at, hold_expires_at, created_at, updated_at`

// scanWaitlistEntry scans waitlistColumns followed by any extra columns.
func scanWaitlistEntry(row interface{ Scan(...any) error }, extra ...any) (*model.WaitlistEntry, error) {
	var e model.WaitlistEntry
	var notifiedAt, holdExpiresAt sql.NullTime
	dest := append([]any{&e.ID, &e.UserID, &e.FacilityID, &e.SessionID, &e.Date, &e.SlotStart, &e.SlotEnd,
		&e.Status, &notifiedAt, &holdExpiresAt, &e.CreatedAt, &e.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.NotifiedAt = timePtr(notifiedAt)
	e.HoldExpiresAt = timePtr(holdExpiresAt)
	e.SlotStart = e.SlotStart.UTC()
	e.SlotEnd = e.SlotEnd.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanWaitlistEntries(rows *sql.Rows) ([]model.WaitlistEntry, error) {
	defer rows.Close()
	out := []model.WaitlistEntry{}
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// CreateTx inserts a pending entry.  A second pending entry for the same
// user, session and date violates the unique pending_key and is reported as
// a duplicate key error by the driver.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (user_id, facility_id, session_id, wait_date, slot_start, slot_end, status, pending_key, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	e.Status = model.WaitlistPending
	res, err := tx.ExecContext(ctx, q, e.UserID, e.FacilityID, e.SessionID, e.Date, e.SlotStart.UTC(), e.SlotEnd.UTC(),
		e.Status, model.PendingKey(e.UserID, e.SessionID, e.Date), e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

func (r *WaitlistRepo) findPending(ctx context.Context, q querier, userID, sessionID uint64, date string) (*model.WaitlistEntry, error) {
	e, err := scanWaitlistEntry(q.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE pending_key = ?`,
		model.PendingKey(userID, sessionID, date)))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// FindPendingTx returns the user's pending entry for the session instance
// or ErrNotFound.
func (r *WaitlistRepo) FindPendingTx(ctx context.Context, tx *sql.Tx, userID, sessionID uint64, date string) (*model.WaitlistEntry, error) {
	return r.findPending(ctx, tx, userID, sessionID, date)
}

// FindActiveHoldTx returns the user's notified entry for the session
// instance whose hold is still running at now, or ErrNotFound.
func (r *WaitlistRepo) FindActiveHoldTx(ctx context.Context, tx *sql.Tx, userID, sessionID uint64, date string, now time.Time) (*model.WaitlistEntry, error) {
	e, err := scanWaitlistEntry(tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
         WHERE user_id = ? AND session_id = ? AND wait_date = ? AND status = ? AND hold_expires_at > ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, sessionID, date, model.WaitlistNotified, now.UTC()))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// Latest returns the user's most recent entry for the session instance in
// any status, or ErrNotFound.
func (r *WaitlistRepo) Latest(ctx context.Context, userID, sessionID uint64, date string) (*model.WaitlistEntry, error) {
	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
         WHERE user_id = ? AND session_id = ? AND wait_date = ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, sessionID, date))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// CountAhead counts pending entries of the same session instance that were
// created strictly before e, using the ID to order entries that share a
// timestamp.
func (r *WaitlistRepo) CountAhead(ctx context.Context, e *model.WaitlistEntry) (int, error) {
	const q = `SELECT COUNT(*) FROM waitlist_entries
               WHERE session_id = ? AND wait_date = ? AND status = ?
                 AND (created_at < ? OR (created_at = ? AND id < ?))`
	var n int
	err := r.db.QueryRowContext(ctx, q, e.SessionID, e.Date, model.WaitlistPending,
		e.CreatedAt.UTC(), e.CreatedAt.UTC(), e.ID).Scan(&n)
	return n, err
}

// NextPendingTx returns the head of the queue for the session instance: the
// pending entry with the smallest (created_at, id).  ErrNotFound when the
// queue is empty.
func (r *WaitlistRepo) NextPendingTx(ctx context.Context, tx *sql.Tx, sessionID uint64, date string) (*model.WaitlistEntry, error) {
	e, err := scanWaitlistEntry(tx.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
         WHERE session_id = ? AND wait_date = ? AND status = ?
         ORDER BY created_at, id LIMIT 1`,
		sessionID, date, model.WaitlistPending))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// MarkNotifiedTx promotes an entry.  holdExpiresAt may be nil when holds
// are disabled.
func (r *WaitlistRepo) MarkNotifiedTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time, holdExpiresAt *time.Time) error {
	const q = `UPDATE waitlist_entries
               SET status = ?, pending_key = NULL, notified_at = ?, hold_expires_at = ?, updated_at = ?
               WHERE id = ? AND status = ?`
	return affected(tx.ExecContext(ctx, q, model.WaitlistNotified, now.UTC(), nullTime(holdExpiresAt), now.UTC(),
		id, model.WaitlistPending))
}

// SetStatusTx moves an entry to status and clears its pending key.
func (r *WaitlistRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, now time.Time) error {
	return affected(tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ?, pending_key = NULL, updated_at = ? WHERE id = ?`,
		status, now.UTC(), id))
}

// ConvertForUserTx marks the user's pending or notified entries for the
// session instance as converted after the user booked it.
func (r *WaitlistRepo) ConvertForUserTx(ctx context.Context, tx *sql.Tx, userID, sessionID uint64, date string, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ?, pending_key = NULL, updated_at = ?
         WHERE user_id = ? AND session_id = ? AND wait_date = ? AND status IN (?, ?)`,
		model.WaitlistConverted, now.UTC(), userID, sessionID, date, model.WaitlistPending, model.WaitlistNotified)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountHoldsOverlappingTx counts holds of other users on the facility that
// are active at now and whose slot intersects [start, end).  When sessionID
// is non-nil only holds for that session are counted.
func (r *WaitlistRepo) CountHoldsOverlappingTx(ctx context.Context, tx *sql.Tx, facilityID uint64, sessionID *uint64, excludeUserID uint64, start, end, now time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM waitlist_entries
          WHERE facility_id = ? AND status = ? AND hold_expires_at > ?
            AND slot_start < ? AND slot_end > ? AND user_id <> ?`
	args := []any{facilityID, model.WaitlistNotified, now.UTC(), end.UTC(), start.UTC(), excludeUserID}
	if sessionID != nil {
		q += ` AND session_id = ?`
		args = append(args, *sessionID)
	}
	var n int
	err := tx.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// CountHoldsStartingBetween counts holds active at now on the facility (and
// session, when given) whose slot starts within [from, to).
func (r *WaitlistRepo) CountHoldsStartingBetween(ctx context.Context, facilityID uint64, sessionID *uint64, from, to, now time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM waitlist_entries
          WHERE facility_id = ? AND status = ? AND hold_expires_at > ?
            AND slot_start >= ? AND slot_start < ?`
	args := []any{facilityID, model.WaitlistNotified, now.UTC(), from.UTC(), to.UTC()}
	if sessionID != nil {
		q += ` AND session_id = ?`
		args = append(args, *sessionID)
	}
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// ExpiredHoldsTx lists notified entries whose hold ran out at or before now.
func (r *WaitlistRepo) ExpiredHoldsTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.WaitlistEntry, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
         WHERE status = ? AND hold_expires_at <= ?
         ORDER BY hold_expires_at, id`,
		model.WaitlistNotified, now.UTC())
	if err != nil {
		return nil, err
	}
	return scanWaitlistEntries(rows)
}

// ExpireEndedPendingTx expires pending entries whose slot ended at or
// before now and returns how many were changed.
func (r *WaitlistRepo) ExpireEndedPendingTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE waitlist_entries SET status = ?, pending_key = NULL, updated_at = ?
         WHERE status = ? AND slot_end <= ?`,
		model.WaitlistExpired, now.UTC(), model.WaitlistPending, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListForSession returns every entry of the session instance in queue order.
func (r *WaitlistRepo) ListForSession(ctx context.Context, sessionID uint64, date string) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
         WHERE session_id = ? AND wait_date = ?
         ORDER BY created_at, id`,
		sessionID, date)
	if err != nil {
		return nil, err
	}
	return scanWaitlistEntries(rows)
}

// WaitlistListing is an entry joined with the names of its facility and
// session.
type WaitlistListing struct {
	model.WaitlistEntry
	FacilityName string
	SessionName  string
}

// ListActiveByUser returns the user's pending and notified entries across
// all sessions, most recently joined first.
func (r *WaitlistRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]WaitlistListing, error) {
	const q = `SELECT w.id, w.user_id, w.facility_id, w.session_id, w.wait_date, w.slot_start, w.slot_end, w.status,
                      w.notified_at, w.hold_expires_at, w.created_at, w.updated_at, f.name, s.name
               FROM waitlist_entries w
               JOIN facilities f ON f.id = w.facility_id
               JOIN facility_sessions s ON s.id = w.session_id
               WHERE w.user_id = ? AND w.status IN (?, ?)
               ORDER BY w.created_at DESC, w.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, model.WaitlistPending, model.WaitlistNotified)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WaitlistListing{}
	for rows.Next() {
		var l WaitlistListing
		e, err := scanWaitlistEntry(rows, &l.FacilityName, &l.SessionName)
		if err != nil {
			return nil, err
		}
		l.WaitlistEntry = *e
		out = append(out, l)
	}
	return out, rows.Err()
}
