package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/repository"
)

const maxNotifications = 100

// NotificationHandler serves the caller's in-app inbox.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

// NewNotificationHandler panics on a nil dependency.
func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	if n == nil {
		panic("nil repository passed to NewNotificationHandler")
	}
	return &NotificationHandler{Notifications: n}
}

// List handles GET /v1/notifications.  It returns 200 with the caller's
// notifications, newest first.  ?unread=true restricts the list to unread
// ones and ?limit= caps it (default 50, at most 100); a limit that is not a
// positive integer gives 400.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return badRequest(c, "invalid limit")
		}
		limit = min(n, maxNotifications)
	}
	unread, _ := strconv.ParseBool(c.QueryParam("unread"))

	ns, err := h.Notifications.ListByUser(c.Request().Context(), userID, unread, limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNotification(n))
	}
	return c.JSON(http.StatusOK, out)
}

// MarkRead handles POST /v1/notifications/:id/read and returns 204.  A
// notification that does not exist or belongs to another user gives 404.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	if err := h.Notifications.MarkRead(c.Request().Context(), id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UnreadCount handles GET /v1/notifications/unread-count and returns 200
// with {"unread": n}.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.Notifications.CountUnread(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread": n})
}

// MarkAllRead handles POST /v1/notifications/read-all.  Every unread
// notification of the caller is marked read and the response is 200 with
// {"updated": n}.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.Notifications.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
