package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/model"
)

// ResidentHandlers groups the handlers behind RegisterResident.
type ResidentHandlers struct {
	Facilities    *handler.FacilityHandler
	Reservations  *handler.ReservationHandler
	Waitlist      *handler.WaitlistHandler
	Notifications *handler.NotificationHandler
}

// RegisterResident registers occupancy, booking, waitlist and inbox
// endpoints under /v1.  Residents and admins may book.
func RegisterResident(e *echo.Echo, h ResidentHandlers, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireUser(model.User.CanBook),
		limit,
	)
	g.GET("/facilities/:id/occupancy", h.Facilities.Occupancy)

	g.POST("/reservations", h.Reservations.Create)
	g.POST("/reservations/:id/cancel", h.Reservations.Cancel)
	g.GET("/my-reservations", h.Reservations.ListMine)

	g.POST("/sessions/:id/waitlist", h.Waitlist.Join)
	g.DELETE("/sessions/:id/waitlist", h.Waitlist.Leave)
	g.GET("/sessions/:id/waitlist", h.Waitlist.Status)
	g.GET("/my-waitlist", h.Waitlist.ListMine)

	g.GET("/notifications", h.Notifications.List)
	g.GET("/notifications/unread-count", h.Notifications.UnreadCount)
	g.POST("/notifications/read-all", h.Notifications.MarkAllRead)
	g.POST("/notifications/:id/read", h.Notifications.MarkRead)
}
