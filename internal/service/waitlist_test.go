package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/queue"
	"github.com/iliyamo/facility-reservation/internal/service"
	"github.com/iliyamo/facility-reservation/internal/testutil"
)

type poolFixture struct {
	h       *testutil.Harness
	eng     *service.Engine
	pool    *model.Facility
	morning *model.Session
}

// newPool seeds the pool scenario: capacity 1, "Morning" 09:00-10:00 every day.
func newPool(t *testing.T, opts service.Options) poolFixture {
	t.Helper()
	h := testutil.NewHarness(t)
	pool := h.SeedFacility(t, "Pool", testutil.WithSessions(), testutil.WithCapacity(1))
	morning := h.SeedSession(t, pool, "Morning", "09:00", "10:00")
	return poolFixture{h: h, eng: h.Engine(opts), pool: pool, morning: morning}
}

func (p poolFixture) book(userID uint64) (*model.Reservation, error) {
	return p.eng.Admission.Admit(context.Background(), service.AdmitRequest{
		UserID: userID, FacilityID: p.pool.ID, SessionID: &p.morning.ID,
		Start: at(day, "09:00"), End: at(day, "10:00"),
	})
}

func (p poolFixture) join(t *testing.T, userID uint64) *model.WaitlistEntry {
	t.Helper()
	e, err := p.eng.Waitlist.Join(context.Background(), userID, p.pool.ID, p.morning.ID, day)
	require.NoError(t, err)
	return e
}

func (p poolFixture) status(t *testing.T, userID uint64) *service.WaitlistStatus {
	t.Helper()
	st, err := p.eng.Waitlist.Status(context.Background(), userID, p.morning.ID, day)
	require.NoError(t, err)
	return st
}

func TestPoolScenario(t *testing.T) {
	p := newPool(t, service.Options{})
	const userA, userB = 1, 2

	resA, err := p.book(userA)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationApproved, resA.Status)

	_, err = p.book(userB)
	require.ErrorIs(t, err, service.ErrCapacityExceeded)

	p.join(t, userB)
	st := p.status(t, userB)
	assert.True(t, st.InWaitlist)
	require.NotNil(t, st.Position)
	assert.Equal(t, 1, *st.Position)

	_, err = p.eng.Admission.Cancel(context.Background(), resA.ID, userA)
	require.NoError(t, err)

	st = p.status(t, userB)
	assert.False(t, st.InWaitlist)
	assert.Equal(t, model.WaitlistNotified, st.Status)
	assert.Nil(t, st.HoldExpiresAt, "holds are disabled")

	opened := p.h.Notifier.OfType(queue.SlotOpened)
	require.Len(t, opened, 1)
	assert.Equal(t, uint64(userB), opened[0].UserID)

	resB, err := p.book(userB)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationApproved, resB.Status)
	assert.Equal(t, model.WaitlistConverted, p.status(t, userB).Status)
}

func TestPromotionIsFIFO(t *testing.T) {
	p := newPool(t, service.Options{})
	resA, err := p.book(1)
	require.NoError(t, err)

	// B, C and D join within the same instant; creation order still decides.
	p.join(t, 2)
	p.join(t, 3)
	p.join(t, 4)
	assert.Equal(t, 1, *p.status(t, 2).Position)
	assert.Equal(t, 2, *p.status(t, 3).Position)
	assert.Equal(t, 3, *p.status(t, 4).Position)

	_, err = p.eng.Admission.Cancel(context.Background(), resA.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, model.WaitlistNotified, p.status(t, 2).Status)
	for user, pos := range map[uint64]int{3: 1, 4: 2} {
		st := p.status(t, user)
		assert.Equal(t, model.WaitlistPending, st.Status)
		require.NotNil(t, st.Position)
		assert.Equal(t, pos, *st.Position)
	}
}

func TestPromotionFollowsJoinTime(t *testing.T) {
	p := newPool(t, service.Options{})
	resA, err := p.book(1)
	require.NoError(t, err)

	for _, user := range []uint64{5, 3, 4} {
		p.join(t, user)
		p.h.Clock.Advance(time.Second)
	}
	_, err = p.eng.Admission.Cancel(context.Background(), resA.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, model.WaitlistNotified, p.status(t, 5).Status)
	assert.Equal(t, model.WaitlistPending, p.status(t, 3).Status)
	assert.Equal(t, model.WaitlistPending, p.status(t, 4).Status)
}

func TestJoinRejectsDuplicatePendingEntry(t *testing.T) {
	p := newPool(t, service.Options{})
	p.join(t, 2)

	_, err := p.eng.Waitlist.Join(context.Background(), 2, p.pool.ID, p.morning.ID, day)
	assert.ErrorIs(t, err, service.ErrConflict)

	// After leaving, the user may queue again at the back.
	require.NoError(t, p.eng.Waitlist.Leave(context.Background(), 2, p.morning.ID, day))
	p.join(t, 2)
}

func TestJoinValidation(t *testing.T) {
	p := newPool(t, service.Options{})
	ctx := context.Background()
	weekday := p.h.SeedSession(t, p.pool, "Weekday", "12:00", "13:00", testutil.OnDays(1, 2, 3, 4, 5))
	other := p.h.SeedFacility(t, "Gym", testutil.WithSessions())
	spin := p.h.SeedSession(t, other, "Spin", "07:00", "08:00")
	shut := p.h.SeedFacility(t, "Sauna", testutil.WithSessions(), testutil.WithStatus(model.FacilityClosed))
	steam := p.h.SeedSession(t, shut, "Steam", "07:00", "08:00")
	room := p.h.SeedFacility(t, "Room")
	standup := p.h.SeedSession(t, room, "Standup", "09:00", "09:30")

	_, err := p.eng.Waitlist.Join(ctx, 2, p.pool.ID, p.morning.ID, "06/01/2024")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = p.eng.Waitlist.Join(ctx, 2, 999, p.morning.ID, day)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = p.eng.Waitlist.Join(ctx, 2, p.pool.ID, spin.ID, day)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = p.eng.Waitlist.Join(ctx, 2, shut.ID, steam.ID, day)
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = p.eng.Waitlist.Join(ctx, 2, p.pool.ID, weekday.ID, day)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
	_, err = p.eng.Waitlist.Join(ctx, 2, room.ID, standup.ID, day)
	assert.ErrorIs(t, err, service.ErrInvalidInput, "hourly facilities have no waitlist")

	p.h.Clock.Set(at(day, "10:00"))
	_, err = p.eng.Waitlist.Join(ctx, 2, p.pool.ID, p.morning.ID, day)
	assert.ErrorIs(t, err, service.ErrInvalidInput, "the session instance has ended")
}

func TestJoinDoesNotRequireAFullSession(t *testing.T) {
	p := newPool(t, service.Options{})
	e := p.join(t, 9)
	assert.Equal(t, model.WaitlistPending, e.Status)
	assert.True(t, e.SlotStart.Equal(at(day, "09:00")))
	assert.True(t, e.SlotEnd.Equal(at(day, "10:00")))
}

func TestLeaveIsIdempotent(t *testing.T) {
	p := newPool(t, service.Options{})
	ctx := context.Background()

	require.NoError(t, p.eng.Waitlist.Leave(ctx, 2, p.morning.ID, day))
	require.NoError(t, p.eng.Waitlist.Leave(ctx, 2, p.morning.ID, day))

	p.join(t, 2)
	require.NoError(t, p.eng.Waitlist.Leave(ctx, 2, p.morning.ID, day))
	require.NoError(t, p.eng.Waitlist.Leave(ctx, 2, p.morning.ID, day))

	st := p.status(t, 2)
	assert.False(t, st.InWaitlist)
	assert.Equal(t, model.WaitlistCancelled, st.Status)
}

func TestStatusWithoutEntry(t *testing.T) {
	p := newPool(t, service.Options{})
	st := p.status(t, 42)
	assert.Equal(t, service.WaitlistStatus{}, *st)

	_, err := p.eng.Waitlist.Status(context.Background(), 42, p.morning.ID, "tomorrow")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestHoldReservesFreedSlot(t *testing.T) {
	p := newPool(t, service.Options{HoldTTL: 10 * time.Minute})
	ctx := context.Background()
	resA, err := p.book(1)
	require.NoError(t, err)
	p.join(t, 2)
	p.join(t, 3)

	_, err = p.eng.Admission.Cancel(ctx, resA.ID, 1)
	require.NoError(t, err)

	st := p.status(t, 2)
	assert.Equal(t, model.WaitlistNotified, st.Status)
	require.NotNil(t, st.HoldExpiresAt)
	assert.True(t, st.HoldExpiresAt.Equal(testutil.ReferenceTime.Add(10*time.Minute)))

	occ, err := p.eng.Availability.Occupancy(ctx, p.pool.ID, &p.morning.ID, day)
	require.NoError(t, err)
	assert.Equal(t, service.Occupancy{Current: 0, Capacity: 1, Held: 1, Remaining: 0, IsFull: true}, *occ)

	// Someone else cannot take the held slot.
	_, err = p.book(3)
	assert.ErrorIs(t, err, service.ErrCapacityExceeded)
	_, err = p.book(4)
	assert.ErrorIs(t, err, service.ErrCapacityExceeded)

	// The holder can.
	_, err = p.book(2)
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistConverted, p.status(t, 2).Status)
}

func TestLeaveReleasesHoldToNextInLine(t *testing.T) {
	p := newPool(t, service.Options{HoldTTL: 10 * time.Minute})
	ctx := context.Background()
	resA, err := p.book(1)
	require.NoError(t, err)
	p.join(t, 2)
	p.join(t, 3)
	_, err = p.eng.Admission.Cancel(ctx, resA.ID, 1)
	require.NoError(t, err)

	require.NoError(t, p.eng.Waitlist.Leave(ctx, 2, p.morning.ID, day))

	assert.Equal(t, model.WaitlistCancelled, p.status(t, 2).Status)
	st := p.status(t, 3)
	assert.Equal(t, model.WaitlistNotified, st.Status)
	assert.NotNil(t, st.HoldExpiresAt)
	assert.Len(t, p.h.Notifier.OfType(queue.SlotOpened), 2)
}

func TestCancelWithEmptyWaitlistPromotesNobody(t *testing.T) {
	p := newPool(t, service.Options{})
	resA, err := p.book(1)
	require.NoError(t, err)

	_, err = p.eng.Admission.Cancel(context.Background(), resA.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, p.h.Notifier.OfType(queue.SlotOpened))
}

func TestListForSession(t *testing.T) {
	p := newPool(t, service.Options{})
	p.join(t, 2)
	p.join(t, 3)

	entries, err := p.eng.Waitlist.ListForSession(context.Background(), p.morning.ID, day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].UserID)
	assert.Equal(t, uint64(3), entries[1].UserID)

	_, err = p.eng.Waitlist.ListForSession(context.Background(), 999, day)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
