package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// FacilityRepo reads the facility catalog and provides the per-facility row
// lock that serializes admissions.  Catalog writes only happen through the
// catalog import command.
type FacilityRepo struct {
	db *sql.DB
}

// NewFacilityRepo returns a new FacilityRepo bound to the given database.
func NewFacilityRepo(db *sql.DB) *FacilityRepo { return &FacilityRepo{db: db} }

const facilityColumns = `id, name, description, capacity, open_hour, close_hour, uses_sessions, status, version, created_at, updated_at`

func scanFacility(row interface{ Scan(...any) error }) (*model.Facility, error) {
	var f model.Facility
	var desc sql.NullString
	if err := row.Scan(&f.ID, &f.Name, &desc, &f.Capacity, &f.OpenHour, &f.CloseHour,
		&f.UsesSessions, &f.Status, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Description = strPtr(desc)
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func (r *FacilityRepo) getByID(ctx context.Context, q querier, id uint64) (*model.Facility, error) {
	f, err := scanFacility(q.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

// GetByID returns the facility or ErrNotFound.
func (r *FacilityRepo) GetByID(ctx context.Context, id uint64) (*model.Facility, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *FacilityRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Facility, error) {
	return r.getByID(ctx, tx, id)
}

// GetByNameTx looks a facility up by its unique name.
func (r *FacilityRepo) GetByNameTx(ctx context.Context, tx *sql.Tx, name string) (*model.Facility, error) {
	f, err := scanFacility(tx.QueryRowContext(ctx, `SELECT `+facilityColumns+` FROM facilities WHERE name = ?`, name))
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

// LockTx takes the exclusive row lock of the facility by bumping its
// version.  It must be the first write of every transaction that admits or
// releases capacity on the facility, so that concurrent admissions for the
// same facility queue behind each other instead of interleaving their
// count and insert steps.  Returns ErrNotFound for an unknown facility.
func (r *FacilityRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	return affected(tx.ExecContext(ctx, `UPDATE facilities SET version = version + 1 WHERE id = ?`, id))
}

// ListActive returns active facilities ordered by name.
func (r *FacilityRepo) ListActive(ctx context.Context) ([]model.Facility, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE status = ? ORDER BY name, id`, model.FacilityActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Facility{}
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// CreateTx inserts a facility and populates its generated ID.
func (r *FacilityRepo) CreateTx(ctx context.Context, tx *sql.Tx, f *model.Facility, now time.Time) error {
	const q = `INSERT INTO facilities (name, description, capacity, open_hour, close_hour, uses_sessions, status, version, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	res, err := tx.ExecContext(ctx, q, f.Name, nullStr(f.Description), f.Capacity, f.OpenHour, f.CloseHour,
		f.UsesSessions, f.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = uint64(id)
	f.CreatedAt, f.UpdatedAt = now, now
	return nil
}

// UpdateTx overwrites the catalog attributes of an existing facility.  The
// version counter is left untouched.
func (r *FacilityRepo) UpdateTx(ctx context.Context, tx *sql.Tx, f *model.Facility, now time.Time) error {
	const q = `UPDATE facilities SET description = ?, capacity = ?, open_hour = ?, close_hour = ?, uses_sessions = ?, status = ?, updated_at = ?
               WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, nullStr(f.Description), f.Capacity, f.OpenHour, f.CloseHour,
		f.UsesSessions, f.Status, now, f.ID); err != nil {
		return err
	}
	f.UpdatedAt = now
	return nil
}
