package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// RegisterAdmin registers the administrative views under /v1/admin.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireUser(model.User.IsAdmin),
	)
	g.GET("/facilities/:id/reservations", h.FacilityReservations)
	g.GET("/sessions/:id/waitlist", h.SessionWaitlist)
}
