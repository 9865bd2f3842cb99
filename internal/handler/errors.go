package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/facility-reservation/internal/service"
)

// statusFor maps rejection codes to HTTP statuses.
var statusFor = map[service.Code]int{
	service.CodeNotFound:         http.StatusNotFound,
	service.CodeInvalidInput:     http.StatusBadRequest,
	service.CodeForbidden:        http.StatusForbidden,
	service.CodeQuotaExceeded:    http.StatusUnprocessableEntity,
	service.CodeCapacityExceeded: http.StatusConflict,
	service.CodeConflict:         http.StatusConflict,
}

// fail writes the error response for err.  Rejections keep their code and
// message; anything else is logged and reported as a 500.
func fail(c echo.Context, err error) error {
	var rej *service.Rejection
	if !errors.As(err, &rej) {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	status, ok := statusFor[rej.Code]
	if !ok {
		status = http.StatusBadRequest
	}
	body := echo.Map{"error": rej.Message, "code": rej.Code}
	if rej.Message == "" {
		body["error"] = string(rej.Code)
	}
	if rej.Limit > 0 {
		body["limit"] = rej.Limit
	}
	if rej.Remediation != "" {
		body["remediation"] = rej.Remediation
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

// queryID parses an optional positive integer query parameter.
func queryID(c echo.Context, name string) (*uint64, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, false
	}
	return &id, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}
