package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// WaitlistHandler serves join, leave and status for a session instance.
// The instance is addressed as /v1/sessions/:id/waitlist plus a date.
type WaitlistHandler struct {
	Waitlist *service.Waitlist
	Sessions *repository.SessionRepo
}

// NewWaitlistHandler panics on a nil dependency.
func NewWaitlistHandler(w *service.Waitlist, s *repository.SessionRepo) *WaitlistHandler {
	if w == nil || s == nil {
		panic("nil dependency passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Waitlist: w, Sessions: s}
}

type joinWaitlistRequest struct {
	FacilityID uint64 `json:"facility_id"`
	Date       string `json:"date"`
}

// Join handles POST /v1/sessions/:id/waitlist.  The body carries the
// date (YYYY-MM-DD) and optionally facility_id; when facility_id is omitted
// the session's own facility is used.  It returns 201 Created with the
// pending entry.  A bad date, a day the session does not run, a session that
// has already ended or an hourly facility gives 400; an unknown session 404;
// a closed facility 403; and a second pending entry for the same session
// and date 409.
func (h *WaitlistHandler) Join(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	var body joinWaitlistRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Date == "" {
		return badRequest(c, "date is required")
	}
	ctx := c.Request().Context()
	if body.FacilityID == 0 {
		s, err := h.Sessions.GetByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
			}
			return fail(c, err)
		}
		body.FacilityID = s.FacilityID
	}

	e, err := h.Waitlist.Join(ctx, userID, body.FacilityID, sessionID, body.Date)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toWaitlistEntry(*e))
}

// Leave handles DELETE /v1/sessions/:id/waitlist?date= and returns 204.
// Leaving without an entry, or leaving twice, is not an error.  A caller
// holding a promoted slot gives it up and the next user in line is
// notified.  A malformed date gives 400.
func (h *WaitlistHandler) Leave(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	if err := h.Waitlist.Leave(c.Request().Context(), userID, sessionID, c.QueryParam("date")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Status handles GET /v1/sessions/:id/waitlist?date=.  It returns 200 with
// the caller's latest entry for the session instance: its status, the queue
// position while pending and the hold expiry while a hold is active.  A
// caller who never joined gets an empty status.
func (h *WaitlistHandler) Status(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	sessionID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	st, err := h.Waitlist.Status(c.Request().Context(), userID, sessionID, c.QueryParam("date"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// ListMine handles GET /v1/my-waitlist.  It returns 200 with the caller's
// pending and notified entries for sessions that have not ended, each with
// the facility and session names, most recently joined first.  Pending
// entries include their queue position.
func (h *WaitlistHandler) ListMine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	items, err := h.Waitlist.ListMine(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]myWaitlistEntryResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toMyWaitlistEntry(it))
	}
	return c.JSON(http.StatusOK, out)
}
