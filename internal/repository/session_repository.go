package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// SessionRepo provides access to facility_sessions.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, facility_id, name, start_minute, end_minute, days_of_week, is_active, capacity`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var start, end, days int
	var capacity sql.NullInt64
	if err := row.Scan(&s.ID, &s.FacilityID, &s.Name, &start, &end, &days, &s.IsActive, &capacity); err != nil {
		return nil, err
	}
	s.StartTime = model.TimeOfDay(start)
	s.EndTime = model.TimeOfDay(end)
	s.DaysOfWeek = model.Weekdays(days)
	if capacity.Valid {
		c := uint32(capacity.Int64)
		s.Capacity = &c
	}
	return &s, nil
}

func (r *SessionRepo) getByID(ctx context.Context, q querier, id uint64) (*model.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM facility_sessions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByID returns the session or ErrNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *SessionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	return r.getByID(ctx, tx, id)
}

// ListByFacility returns the sessions of a facility ordered by start time.
// When activeOnly is set, inactive sessions are omitted.
func (r *SessionRepo) ListByFacility(ctx context.Context, facilityID uint64, activeOnly bool) ([]model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM facility_sessions WHERE facility_id = ?`
	args := []any{facilityID}
	if activeOnly {
		q += ` AND is_active = ?`
		args = append(args, true)
	}
	q += ` ORDER BY start_minute, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByNameTx finds a session of a facility by name.
func (r *SessionRepo) GetByNameTx(ctx context.Context, tx *sql.Tx, facilityID uint64, name string) (*model.Session, error) {
	s, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM facility_sessions WHERE facility_id = ? AND name = ?`, facilityID, name))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func sessionCapacity(s *model.Session) sql.NullInt64 {
	if s.Capacity == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*s.Capacity), Valid: true}
}

// CreateTx inserts a session and populates its generated ID.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `INSERT INTO facility_sessions (facility_id, name, start_minute, end_minute, days_of_week, is_active, capacity)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.FacilityID, s.Name, int(s.StartTime), int(s.EndTime),
		int(s.DaysOfWeek), s.IsActive, sessionCapacity(s))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// UpdateTx overwrites the window, recurrence, flag and capacity of a session.
func (r *SessionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `UPDATE facility_sessions SET start_minute = ?, end_minute = ?, days_of_week = ?, is_active = ?, capacity = ?
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, int(s.StartTime), int(s.EndTime), int(s.DaysOfWeek),
		s.IsActive, sessionCapacity(s), s.ID)
	return err
}
