package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/service"
	"github.com/iliyamo/facility-reservation/internal/testutil"
)

var facilityCols = []string{"id", "name", "description", "capacity", "open_hour", "close_hour",
	"uses_sessions", "status", "version", "created_at", "updated_at"}

func gymRow() *sqlmock.Rows {
	ts := testutil.ReferenceTime
	return sqlmock.NewRows(facilityCols).AddRow(7, "Gym", nil, 3, 6, 22, false, "active", 1, ts, ts)
}

// On MySQL the facility row lock is what keeps concurrent admissions from
// counting the same free capacity, so it must be the first statement of the
// admit transaction, ahead of every count.
func TestAdmitLocksFacilityBeforeCounting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	eng := service.New(database.NewStore(db, database.MySQL), service.Options{
		Now: func() time.Time { return testutil.ReferenceTime },
	}, nil, zerolog.Nop())

	mock.ExpectQuery(`SELECT .+ FROM facilities WHERE id = \?`).WillReturnRows(gymRow())
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE facilities SET version = version \+ 1 WHERE id = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM facilities WHERE id = \?`).WillReturnRows(gymRow())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reservations WHERE user_id = \?`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = eng.Admission.Admit(context.Background(), hourly(1, 7, "10:00", "11:00"))
	assert.ErrorContains(t, err, "count user reservations")
	assert.NoError(t, mock.ExpectationsWereMet())
}
