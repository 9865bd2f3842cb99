package router_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/facility-reservation/internal/model"
	"github.com/iliyamo/facility-reservation/internal/router"
	"github.com/iliyamo/facility-reservation/internal/service"
	"github.com/iliyamo/facility-reservation/internal/testutil"
	"github.com/iliyamo/facility-reservation/internal/utils"
)

const (
	secret = "router-test-secret"
	day    = "2024-06-01"
)

type api struct {
	t       *testing.T
	h       *testutil.Harness
	e       *echo.Echo
	pool    *model.Facility
	morning *model.Session
}

func newAPI(t *testing.T) *api {
	h := testutil.NewHarness(t)
	eng := h.Engine(service.Options{HoldTTL: 10 * time.Minute})
	pool := h.SeedFacility(t, "Pool", testutil.WithSessions(), testutil.WithCapacity(1))
	morning := h.SeedSession(t, pool, "Morning", "09:00", "10:00")
	e := router.New(router.Deps{DB: h.DB, Engine: eng, JWTSecret: secret, Log: zerolog.Nop()})
	return &api{t: t, h: h, e: e, pool: pool, morning: morning}
}

func (a *api) token(userID uint64, role string) string {
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *api) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) resident(userID uint64) string { return a.token(userID, model.RoleResident) }

func (a *api) bookMorning(userID uint64) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"facility_id":%d,"session_id":%d,"start_time":"%sT09:00:00Z","end_time":"%sT10:00:00Z"}`,
		a.pool.ID, a.morning.ID, day, day)
	return a.do(http.MethodPost, "/v1/reservations", a.resident(userID), body)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestProbes(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = a.do(http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCatalog(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/v1/facilities", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var facilities []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &facilities))
	require.Len(t, facilities, 1)
	assert.Equal(t, "Pool", facilities[0]["name"])
	assert.Equal(t, true, facilities[0]["uses_sessions"])

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/facilities/%d/sessions", a.pool.ID), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "09:00", sessions[0]["start_time"])
	assert.Equal(t, "10:00", sessions[0]["end_time"])
	assert.Len(t, sessions[0]["days_of_week"], 7)

	rec = a.do(http.MethodGet, "/v1/facilities/999/sessions", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = a.do(http.MethodGet, "/v1/facilities/abc/sessions", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOccupancyEndpoint(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.bookMorning(1).Code)

	path := fmt.Sprintf("/v1/facilities/%d/occupancy?date=%s&session_id=%d", a.pool.ID, day, a.morning.ID)
	rec := a.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "occupancy needs a signed-in user")

	tok := a.resident(2)
	rec = a.do(http.MethodGet, path, tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"current":1,"capacity":1,"held":0,"remaining":0,"is_full":true}`, rec.Body.String())

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/facilities/%d/occupancy", a.pool.ID), tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/facilities/%d/occupancy?date=2024-02-30", a.pool.ID), tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFullSessionToWaitlistToBooking(t *testing.T) {
	a := newAPI(t)
	waitlist := fmt.Sprintf("/v1/sessions/%d/waitlist", a.morning.ID)

	rec := a.bookMorning(1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resA := decode(t, rec)
	assert.Equal(t, model.ReservationApproved, resA["status"])

	rec = a.bookMorning(2)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CAPACITY_EXCEEDED", body["code"])
	assert.Equal(t, service.RemediationJoinWaitlist, body["remediation"])

	rec = a.do(http.MethodPost, waitlist, a.resident(2), `{"date":"`+day+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, float64(a.pool.ID), decode(t, rec)["facility_id"])

	rec = a.do(http.MethodGet, waitlist+"?date="+day, a.resident(2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.Equal(t, true, st["in_waitlist"])
	assert.Equal(t, float64(1), st["position"])

	rec = a.do(http.MethodPost, fmt.Sprintf("/v1/reservations/%v/cancel", resA["id"]), a.resident(1), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.ReservationCancelled, decode(t, rec)["status"])

	rec = a.do(http.MethodGet, waitlist+"?date="+day, a.resident(2), "")
	st = decode(t, rec)
	assert.Equal(t, false, st["in_waitlist"])
	assert.Equal(t, model.WaitlistNotified, st["status"])
	assert.NotEmpty(t, st["hold_expires_at"])

	rec = a.do(http.MethodGet, "/v1/notifications?unread=true", a.resident(2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, false, inbox[0]["is_read"])

	rec = a.do(http.MethodPost, fmt.Sprintf("/v1/notifications/%v/read", inbox[0]["id"]), a.resident(2), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(http.MethodPost, fmt.Sprintf("/v1/notifications/%v/read", inbox[0]["id"]), a.resident(1), "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "another user's notification")

	rec = a.bookMorning(2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/v1/my-reservations", a.resident(2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, float64(a.morning.ID), mine[0]["session_id"])
}

func TestMyWaitlist(t *testing.T) {
	a := newAPI(t)
	resA := decode(t, a.bookMorning(1))
	waitlist := fmt.Sprintf("/v1/sessions/%d/waitlist", a.morning.ID)
	for _, user := range []uint64{2, 3} {
		require.Equal(t, http.StatusCreated, a.do(http.MethodPost, waitlist, a.resident(user), `{"date":"`+day+`"}`).Code)
	}
	mine := func(userID uint64) []map[string]any {
		rec := a.do(http.MethodGet, "/v1/my-waitlist", a.resident(userID), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	assert.Empty(t, mine(1))
	entries := mine(3)
	require.Len(t, entries, 1)
	assert.Equal(t, "Pool", entries[0]["facility_name"])
	assert.Equal(t, "Morning", entries[0]["session_name"])
	assert.Equal(t, model.WaitlistPending, entries[0]["status"])
	assert.Equal(t, float64(2), entries[0]["position"])

	rec := a.do(http.MethodPost, fmt.Sprintf("/v1/reservations/%v/cancel", resA["id"]), a.resident(1), "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries = mine(2)
	require.Len(t, entries, 1)
	assert.Equal(t, model.WaitlistNotified, entries[0]["status"])
	assert.NotContains(t, entries[0], "position")
	assert.NotEmpty(t, entries[0]["hold_expires_at"])
	assert.Equal(t, float64(1), mine(3)[0]["position"])

	// Once the session is over the entries drop off the list.
	a.h.Clock.Set(time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC))
	assert.Empty(t, mine(3))
}

func TestNotificationCountsAndReadAll(t *testing.T) {
	a := newAPI(t)
	unread := func(userID uint64) float64 {
		rec := a.do(http.MethodGet, "/v1/notifications/unread-count", a.resident(userID), "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode(t, rec)["unread"].(float64)
	}
	assert.Equal(t, float64(0), unread(1))

	require.Equal(t, http.StatusCreated, a.bookMorning(1).Code)
	assert.Equal(t, float64(1), unread(1))
	assert.Equal(t, float64(0), unread(2))

	rec := a.do(http.MethodPost, "/v1/notifications/read-all", a.resident(1), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["updated"])
	assert.Equal(t, float64(0), unread(1))

	rec = a.do(http.MethodPost, "/v1/notifications/read-all", a.resident(1), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["updated"])

	rec = a.do(http.MethodGet, "/v1/notifications", a.resident(1), "")
	var inbox []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, true, inbox[0]["is_read"])
}

func TestQuotaExceededIs422(t *testing.T) {
	a := newAPI(t)
	room := a.h.SeedFacility(t, "Room", testutil.WithCapacity(5))
	book := func(from, to string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{"facility_id":%d,"start_time":"%sT%s:00Z","end_time":"%sT%s:00Z"}`, room.ID, day, from, day, to)
		return a.do(http.MethodPost, "/v1/reservations", a.resident(7), body)
	}
	require.Equal(t, http.StatusCreated, book("08:00", "09:00").Code)
	require.Equal(t, http.StatusCreated, book("10:00", "11:00").Code)

	rec := book("12:00", "13:00")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "QUOTA_EXCEEDED", body["code"])
	assert.Equal(t, float64(2), body["limit"])
}

func TestRequestValidationAndOwnership(t *testing.T) {
	a := newAPI(t)
	waitlist := fmt.Sprintf("/v1/sessions/%d/waitlist", a.morning.ID)

	rec := a.do(http.MethodPost, "/v1/reservations", a.resident(1), `{"facility_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/v1/reservations", a.resident(1),
		fmt.Sprintf(`{"facility_id":%d,"start_time":"tomorrow","end_time":"later"}`, a.pool.ID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/v1/reservations", a.resident(1),
		`{"facility_id":999,"start_time":"2024-06-01T09:00:00Z","end_time":"2024-06-01T10:00:00Z"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	res := decode(t, a.bookMorning(1))
	rec = a.do(http.MethodPost, fmt.Sprintf("/v1/reservations/%v/cancel", res["id"]), a.resident(2), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPost, "/v1/reservations/424242/cancel", a.resident(1), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, waitlist, a.resident(3), `{"date":"`+day+`"}`).Code)
	rec = a.do(http.MethodPost, waitlist, a.resident(3), `{"date":"`+day+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["code"])
	rec = a.do(http.MethodPost, waitlist, a.resident(3), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		rec = a.do(http.MethodDelete, waitlist+"?date="+day, a.resident(3), "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	rec = a.do(http.MethodGet, "/v1/sessions/999/waitlist", a.resident(3), `{"date":"`+day+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "date comes from the query string")
}

func TestAuthorization(t *testing.T) {
	a := newAPI(t)
	require.Equal(t, http.StatusCreated, a.bookMorning(1).Code)
	admin := a.token(99, model.RoleAdmin)
	reservations := fmt.Sprintf("/v1/admin/facilities/%d/reservations", a.pool.ID)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/my-reservations", "", "").Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/my-reservations", a.token(1, "GUEST"), "").Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, reservations, a.resident(1), "").Code)

	rec := a.do(http.MethodGet, reservations+"?date="+day, admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, fmt.Sprintf("/v1/sessions/%d/waitlist", a.morning.ID), a.resident(4), `{"date":"`+day+`"}`).Code)
	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/admin/sessions/%d/waitlist?date=%s", a.morning.ID, day), admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var queue []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, float64(4), queue[0]["user_id"])

	// Admins may book too.
	body := fmt.Sprintf(`{"facility_id":%d,"session_id":%d,"start_time":"%sT09:00:00Z","end_time":"%sT10:00:00Z"}`,
		a.pool.ID, a.morning.ID, day, day)
	rec = a.do(http.MethodPost, "/v1/reservations", admin, body)
	assert.Equal(t, http.StatusConflict, rec.Code, "admitted but the pool is full")
}
