package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/middleware"
)

// apiGroup creates a group under /api/v1 that requires an actor and is rate limited
func apiGroup(e *echo.Echo, c *container.Container, prefix string) *echo.Group {
	g := e.Group("/api/v1" + prefix)
	g.Use(middleware.ExtractActor())                                         // X-Client-ID, X-User-ID, X-Scopes
	g.Use(middleware.ClientRateLimit(c.Limiter, c.Components.Config.RateLimit)) // per-client quotas
	return g
}

// adminGroup is an apiGroup under /api/v1/admin that requires the admin scope
func adminGroup(e *echo.Echo, c *container.Container, prefix string) *echo.Group {
	g := apiGroup(e, c, "/admin"+prefix)
	g.Use(middleware.RequireScope(middleware.ScopeAdmin))
	return g
}
