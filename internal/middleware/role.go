package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// RequireUser aborts with 403 unless allow accepts the caller identity
// stored by JWTAuth.  Pass a capability check such as model.User.CanBook.
func RequireUser(allow func(model.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allow(CurrentUser(c)) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
