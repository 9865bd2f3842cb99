package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	userIDKey = "user_id"
	roleKey   = "role"
)

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// CurrentUser returns the caller identity stored by JWTAuth.
func CurrentUser(c echo.Context) model.User {
	id, _ := UserID(c)
	return model.User{ID: id, Role: Role(c)}
}

// Role returns the authenticated user's role, or "" for guests.
func Role(c echo.Context) string {
	r, _ := c.Get(roleKey).(string)
	return r
}

// userKey identifies the caller for rate limiting and logging.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
