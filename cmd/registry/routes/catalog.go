package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/handlers"
)

// RegisterCatalogRoutes registers catalog publication routes
func RegisterCatalogRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCatalogHandler(c)

	cat := apiGroup(e, c, "/catalogs")
	{
		cat.GET("/:catalog_id/records", h.ListCatalogRecords)          // GET /api/v1/catalogs/SAEON/records?published=true
		cat.GET("/:catalog_id/records/:record_id", h.GetCatalogRecord) // GET /api/v1/catalogs/SAEON/records/{record_id}
	}

	admin := adminGroup(e, c, "/catalogs")
	{
		admin.POST("/publish", h.PublishAll)          // POST /api/v1/admin/catalogs/publish
		admin.POST("/:catalog_id/publish", h.Publish) // POST /api/v1/admin/catalogs/SAEON/publish
	}
}
