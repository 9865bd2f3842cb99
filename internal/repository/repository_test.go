package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/database"
	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/testutil"
)

var t0 = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func inTx(t *testing.T, h *testutil.Harness, fn func(tx *sql.Tx) error) error {
	t.Helper()
	return h.Store.WithTx(context.Background(), fn)
}

func TestWaitlistPendingKeyAllowsOnePendingEntry(t *testing.T) {
	h := testutil.NewHarness(t)
	pool := h.SeedFacility(t, "Pool", testutil.WithSessions())
	morning := h.SeedSession(t, pool, "Morning", "09:00", "10:00")
	repo := repository.NewWaitlistRepo(h.DB)
	ctx := context.Background()

	entry := func() *model.WaitlistEntry {
		return &model.WaitlistEntry{UserID: 5, FacilityID: pool.ID, SessionID: morning.ID, Date: "2024-06-01",
			SlotStart: t0, SlotEnd: t0.Add(time.Hour), CreatedAt: t0.Add(-time.Hour), UpdatedAt: t0.Add(-time.Hour)}
	}
	first := entry()
	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, first) }))

	err := inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, entry()) })
	require.Error(t, err)
	assert.True(t, database.IsDuplicateKey(err))

	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error {
		return repo.SetStatusTx(ctx, tx, first.ID, model.WaitlistCancelled, t0)
	}))
	second := entry()
	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, second) }))

	latest, err := repo.Latest(ctx, 5, morning.ID, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, model.WaitlistPending, latest.Status)
	assert.True(t, latest.SlotStart.Equal(t0))
}

func TestReservationListByFacilityBounds(t *testing.T) {
	h := testutil.NewHarness(t)
	room := h.SeedFacility(t, "Room", testutil.WithCapacity(5))
	repo := repository.NewReservationRepo(h.DB)
	ctx := context.Background()

	for i, start := range []time.Time{t0, t0.Add(24 * time.Hour), t0.Add(-24 * time.Hour)} {
		r := &model.Reservation{UserID: uint64(i + 1), FacilityID: room.ID, StartTime: start, EndTime: start.Add(time.Hour),
			Status: model.ReservationApproved, CreatedAt: t0, UpdatedAt: t0}
		require.NoError(t, inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, r) }))
	}

	all, err := repo.ListByFacility(ctx, room.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(3), all[0].UserID, "ordered by start time")

	day := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	one, err := repo.ListByFacility(ctx, room.ID, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, uint64(1), one[0].UserID)

	var completed int64
	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error {
		var err error
		completed, err = repo.CompleteEndedTx(ctx, tx, t0.Add(time.Hour))
		return err
	}))
	assert.Equal(t, int64(2), completed, "the reservation ending exactly now is complete")
}

func TestNotificationInbox(t *testing.T) {
	h := testutil.NewHarness(t)
	repo := repository.NewNotificationRepo(h.DB)
	ctx := context.Background()

	var ids []uint64
	for i := 0; i < 3; i++ {
		n := &model.Notification{UserID: 1, Title: "t", Message: "m", Type: model.NotificationInfo,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, n) }))
		ids = append(ids, n.ID)
	}

	require.NoError(t, repo.MarkRead(ctx, ids[2], 1))
	assert.ErrorIs(t, repo.MarkRead(ctx, ids[0], 2), repository.ErrNotFound)
	assert.ErrorIs(t, repo.MarkRead(ctx, 999, 1), repository.ErrNotFound)

	unread, err := repo.ListByUser(ctx, 1, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, ids[1], unread[0].ID, "newest first")

	limited, err := repo.ListByUser(ctx, 1, false, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.True(t, limited[0].IsRead)

	n, err := repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	changed, err := repo.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)
	n, err = repo.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWaitlistListActiveByUser(t *testing.T) {
	h := testutil.NewHarness(t)
	pool := h.SeedFacility(t, "Pool", testutil.WithSessions())
	morning := h.SeedSession(t, pool, "Morning", "09:00", "10:00")
	evening := h.SeedSession(t, pool, "Evening", "18:00", "19:00")
	repo := repository.NewWaitlistRepo(h.DB)
	ctx := context.Background()

	join := func(userID uint64, s *model.Session, created time.Time) *model.WaitlistEntry {
		e := &model.WaitlistEntry{UserID: userID, FacilityID: pool.ID, SessionID: s.ID, Date: "2024-06-01",
			SlotStart: t0, SlotEnd: t0.Add(time.Hour), CreatedAt: created, UpdatedAt: created}
		require.NoError(t, inTx(t, h, func(tx *sql.Tx) error { return repo.CreateTx(ctx, tx, e) }))
		return e
	}
	first := join(5, morning, t0.Add(-2*time.Hour))
	second := join(5, evening, t0.Add(-time.Hour))
	join(6, morning, t0.Add(-time.Hour))
	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error {
		return repo.SetStatusTx(ctx, tx, first.ID, model.WaitlistCancelled, t0)
	}))
	rejoined := join(5, morning, t0)
	hold := t0.Add(10 * time.Minute)
	require.NoError(t, inTx(t, h, func(tx *sql.Tx) error {
		return repo.MarkNotifiedTx(ctx, tx, second.ID, t0, &hold)
	}))

	ls, err := repo.ListActiveByUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ls, 2)
	assert.Equal(t, rejoined.ID, ls[0].ID, "newest first")
	assert.Equal(t, "Morning", ls[0].SessionName)
	assert.Equal(t, model.WaitlistPending, ls[0].Status)
	assert.Equal(t, second.ID, ls[1].ID)
	assert.Equal(t, "Evening", ls[1].SessionName)
	assert.Equal(t, "Pool", ls[1].FacilityName)
	assert.Equal(t, model.WaitlistNotified, ls[1].Status)
}
