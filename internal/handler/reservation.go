package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// ReservationHandler serves the resident booking endpoints.  JWT
// authentication and role checks run in middleware.
type ReservationHandler struct {
	Admission *service.Admission
}

// NewReservationHandler panics on a nil dependency.
func NewReservationHandler(a *service.Admission) *ReservationHandler {
	if a == nil {
		panic("nil admission passed to NewReservationHandler")
	}
	return &ReservationHandler{Admission: a}
}

type createReservationRequest struct {
	FacilityID uint64  `json:"facility_id"`
	SessionID  *uint64 `json:"session_id"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
}

// Create handles POST /v1/reservations.  The body carries facility_id,
// start_time and end_time as RFC 3339 timestamps, plus session_id for
// session-mode facilities.  On success it returns 201 Created with the
// approved reservation.  A malformed body or a request outside the opening
// hours or session window gives 400, an unknown facility or session 404 and
// a closed facility 403.  A user at the reservation limit gets 422 with the
// limit in the body; a full facility gets 409, and when the request was for
// a session the body adds "remediation": "join_waitlist".
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	var body createReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.FacilityID == 0 {
		return badRequest(c, "facility_id is required")
	}
	if body.SessionID != nil && *body.SessionID == 0 {
		return badRequest(c, "invalid session_id")
	}
	start, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		return badRequest(c, "start_time must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, body.EndTime)
	if err != nil {
		return badRequest(c, "end_time must be RFC 3339")
	}

	res, err := h.Admission.Admit(c.Request().Context(), service.AdmitRequest{
		UserID:     userID,
		FacilityID: body.FacilityID,
		SessionID:  body.SessionID,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toReservation(*res))
}

// Cancel handles POST /v1/reservations/:id/cancel and returns 200 with the
// cancelled reservation.  Only the owner may cancel (403 otherwise); an
// unknown id gives 404 and a reservation that is already cancelled or
// completed gives 400.  Freeing a session slot promotes the next user on
// that session's waitlist within the same transaction.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Admission.Cancel(c.Request().Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReservation(*res))
}

// ListMine handles GET /v1/my-reservations.  It returns 200 with every
// reservation of the caller in any status, newest start time first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	rs, err := h.Admission.ListMine(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReservations(rs))
}
