// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/facility-reservation/internal/config"
	"github.com/iliyamo/facility-reservation/internal/handler"
	"github.com/iliyamo/facility-reservation/internal/middleware"
	"github.com/iliyamo/facility-reservation/internal/repository"
	"github.com/iliyamo/facility-reservation/internal/service"
)

// Deps are the collaborators needed to serve the API.  Redis is optional.
type Deps struct {
	DB        *sql.DB
	Engine    *service.Engine
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       zerolog.Logger
}

// New builds the echo server with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))

	facilities := repository.NewFacilityRepo(d.DB)
	sessions := repository.NewSessionRepo(d.DB)

	RegisterRoutes(e, d.DB)
	catalog := handler.NewFacilityHandler(facilities, sessions, d.Engine.Availability)
	RegisterPublic(e, catalog, middleware.NewRedisCache(d.Cache, d.Redis))

	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)
	RegisterResident(e, ResidentHandlers{
		Facilities:    catalog,
		Reservations:  handler.NewReservationHandler(d.Engine.Admission),
		Waitlist:      handler.NewWaitlistHandler(d.Engine.Waitlist, sessions),
		Notifications: handler.NewNotificationHandler(repository.NewNotificationRepo(d.DB)),
	}, d.JWTSecret, limit)
	RegisterAdmin(e, handler.NewAdminHandler(d.Engine.Admission, d.Engine.Waitlist), d.JWTSecret)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterPublic registers the catalog endpoints.  They need no token and
// sit behind the response cache.  Occupancy is live data and is served to
// signed-in users only, see RegisterResident.
func RegisterPublic(e *echo.Echo, f *handler.FacilityHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/facilities", f.List, cache)
	e.GET("/v1/facilities/:id/sessions", f.ListSessions, cache)
}
