package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/handlers"
)

// RegisterAuditRoutes registers audit detail routes. Entity logs are
// registered with their entity routes.
func RegisterAuditRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAuditHandler(c)

	a := apiGroup(e, c, "/audit")
	{
		a.GET("/:stream/:audit_id", h.GetAuditEntry) // GET /api/v1/audit/record_tag/17
	}
}
