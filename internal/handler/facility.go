package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// FacilityHandler serves the catalog and occupancy endpoints.
type FacilityHandler struct {
	Facilities   *repository.FacilityRepo
	Sessions     *repository.SessionRepo
	Availability *service.Availability
}

// NewFacilityHandler panics on a nil dependency.
func NewFacilityHandler(f *repository.FacilityRepo, s *repository.SessionRepo, a *service.Availability) *FacilityHandler {
	if f == nil || s == nil || a == nil {
		panic("nil dependency passed to NewFacilityHandler")
	}
	return &FacilityHandler{Facilities: f, Sessions: s, Availability: a}
}

// List handles GET /v1/facilities.  It returns 200 with the active
// facilities ordered by name.  Responses are cached in Redis when the cache
// is enabled.
func (h *FacilityHandler) List(c echo.Context) error {
	fs, err := h.Facilities.ListActive(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	out := make([]facilityResponse, 0, len(fs))
	for _, f := range fs {
		out = append(out, toFacility(f))
	}
	return c.JSON(http.StatusOK, out)
}

// ListSessions handles GET /v1/facilities/:id/sessions.  It returns 200
// with the facility's active sessions; inactive ones are hidden.  An unknown
// facility gives 404.
func (h *FacilityHandler) ListSessions(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	ctx := c.Request().Context()
	if _, err := h.Facilities.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "facility not found"})
		}
		return fail(c, err)
	}
	ss, err := h.Sessions.ListByFacility(ctx, id, true)
	if err != nil {
		return fail(c, err)
	}
	out := make([]sessionResponse, 0, len(ss))
	for _, s := range ss {
		out = append(out, toSession(s))
	}
	return c.JSON(http.StatusOK, out)
}

// Occupancy handles GET /v1/facilities/:id/occupancy?date=&session_id=.
// date is required; session_id narrows the count to one session.  It
// returns 200 with current, capacity, held, remaining and is_full.  A
// missing or malformed date gives 400; an unknown facility, or a session of
// another facility, gives 404.
func (h *FacilityHandler) Occupancy(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	sessionID, ok := queryID(c, "session_id")
	if !ok {
		return badRequest(c, "invalid session_id")
	}
	date := c.QueryParam("date")
	if date == "" {
		return badRequest(c, "date is required")
	}
	occ, err := h.Availability.Occupancy(c.Request().Context(), id, sessionID, date)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, occ)
}
