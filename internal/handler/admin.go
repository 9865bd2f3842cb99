package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/service"
)

// AdminHandler serves the read-only administrative views.  Routes are
// guarded by RequireUser(model.User.IsAdmin).
type AdminHandler struct {
	Admission *service.Admission
	Waitlist  *service.Waitlist
}

// NewAdminHandler panics on a nil dependency.
func NewAdminHandler(a *service.Admission, w *service.Waitlist) *AdminHandler {
	if a == nil || w == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Admission: a, Waitlist: w}
}

// FacilityReservations handles GET /v1/admin/facilities/:id/reservations.
// It returns 200 with the facility's reservations in any status ordered by
// start time.  An optional ?date= restricts the list to reservations
// starting that day; a malformed date gives 400 and an unknown facility
// 404.
func (h *AdminHandler) FacilityReservations(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid facility id")
	}
	rs, err := h.Admission.ListForFacility(c.Request().Context(), id, c.QueryParam("date"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReservations(rs))
}

// SessionWaitlist handles GET /v1/admin/sessions/:id/waitlist?date=.  It
// returns 200 with every entry of the session instance in queue order,
// whatever its status.  A malformed date gives 400 and an unknown session
// 404.
func (h *AdminHandler) SessionWaitlist(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid session id")
	}
	es, err := h.Waitlist.ListForSession(c.Request().Context(), id, c.QueryParam("date"))
	if err != nil {
		return fail(c, err)
	}
	out := make([]waitlistEntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, toWaitlistEntry(e))
	}
	return c.JSON(http.StatusOK, out)
}
