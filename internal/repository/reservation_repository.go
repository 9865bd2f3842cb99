package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations.  Reservations are
// never deleted; the repository only inserts them and moves them between
// statuses.  All timestamp fields are stored in UTC and every timestamp is
// supplied by the caller, so the engine clock is the single source of "now".
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, facility_id, session_id, start_time, end_time, status, created_at, updated_at`

// activeStatuses are the statuses that occupy capacity and count toward the
// user quota.
var activeStatuses = []any{model.ReservationPending, model.ReservationApproved}

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var res model.Reservation
	var sessionID sql.NullInt64
	if err := row.Scan(&res.ID, &res.UserID, &res.FacilityID, &sessionID, &res.StartTime, &res.EndTime,
		&res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.SessionID = uintPtr(sessionID)
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID.  CreatedAt and UpdatedAt are
// taken from the record.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, facility_id, session_id, start_time, end_time, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.FacilityID, nullUint(res.SessionID),
		res.StartTime.UTC(), res.EndTime.UTC(), res.Status, res.CreatedAt.UTC(), res.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByIDTx returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// UpdateStatusTx moves a reservation to status.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, now time.Time) error {
	return affected(tx.ExecContext(ctx, `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`, status, now.UTC(), id))
}

// CountActiveByUserTx counts the user's pending or approved reservations
// whose end lies after now, across all facilities.
func (r *ReservationRepo) CountActiveByUserTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE user_id = ? AND status IN (?, ?) AND end_time > ?`
	var n int
	err := tx.QueryRowContext(ctx, q, userID, activeStatuses[0], activeStatuses[1], now.UTC()).Scan(&n)
	return n, err
}

// CountOverlappingTx counts pending or approved reservations of the
// facility whose interval intersects [start, end).  When sessionID is
// non-nil only reservations of that session are counted.
func (r *ReservationRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, facilityID uint64, sessionID *uint64, start, end time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM reservations
          WHERE facility_id = ? AND status IN (?, ?) AND start_time < ? AND end_time > ?`
	args := []any{facilityID, activeStatuses[0], activeStatuses[1], end.UTC(), start.UTC()}
	if sessionID != nil {
		q += ` AND session_id = ?`
		args = append(args, *sessionID)
	}
	var n int
	err := tx.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// CountStartingBetween counts pending or approved reservations of the
// facility (and session, when given) that start within [from, to).
func (r *ReservationRepo) CountStartingBetween(ctx context.Context, facilityID uint64, sessionID *uint64, from, to time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM reservations
          WHERE facility_id = ? AND status IN (?, ?) AND start_time >= ? AND start_time < ?`
	args := []any{facilityID, activeStatuses[0], activeStatuses[1], from.UTC(), to.UTC()}
	if sessionID != nil {
		q += ` AND session_id = ?`
		args = append(args, *sessionID)
	}
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// ListByUser returns every reservation of the user, newest start first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY start_time DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// ListByFacility returns the reservations of a facility ordered by start
// time.  A zero from or to leaves that side of the range open.
func (r *ReservationRepo) ListByFacility(ctx context.Context, facilityID uint64, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE facility_id = ?`
	args := []any{facilityID}
	if !from.IsZero() {
		q += ` AND start_time >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		q += ` AND start_time < ?`
		args = append(args, to.UTC())
	}
	q += ` ORDER BY start_time, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// CompleteEndedTx moves approved reservations that ended at or before now
// to completed and returns how many were changed.
func (r *ReservationRepo) CompleteEndedTx(ctx context.Context, tx *sql.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE status = ? AND end_time <= ?`,
		model.ReservationCompleted, now.UTC(), model.ReservationApproved, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
