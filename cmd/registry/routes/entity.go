package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/handlers"
	"github.com/opendataplatform/registry/common/models"
)

// RegisterProviderRoutes registers provider routes
func RegisterProviderRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewProviderHandler(c)
	audit := handlers.NewAuditHandler(c)

	p := apiGroup(e, c, "/providers")
	{
		p.POST("", h.CreateProvider)                                  // POST /api/v1/providers
		p.GET("/:id", h.GetProvider)                                  // GET /api/v1/providers/{id}
		p.DELETE("/:id", h.DeleteProvider)                            // DELETE /api/v1/providers/{id}
		p.GET("/:id/audit", audit.EntityLog(models.StreamProvider))   // GET /api/v1/providers/{id}/audit
	}
}

// RegisterCollectionRoutes registers collection routes, tags included
func RegisterCollectionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCollectionHandler(c)
	audit := handlers.NewAuditHandler(c)

	col := apiGroup(e, c, "/collections")
	{
		col.POST("", h.CreateCollection)                                 // POST /api/v1/collections
		col.GET("/:id", h.GetCollection)                                 // GET /api/v1/collections/{id}
		col.PUT("/:id", h.UpdateCollection)                              // PUT /api/v1/collections/{id}
		col.DELETE("/:id", h.DeleteCollection)                           // DELETE /api/v1/collections/{id}
		col.GET("/:id/audit", audit.EntityLog(models.StreamCollection)) // GET /api/v1/collections/{id}/audit
	}
	registerTagging(e, c, col, "/collections", models.KindCollection)
}

// RegisterPackageRoutes registers package routes, tags and submission included
func RegisterPackageRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPackageHandler(c)
	audit := handlers.NewAuditHandler(c)

	pkg := apiGroup(e, c, "/packages")
	{
		pkg.POST("", h.CreatePackage)                                 // POST /api/v1/packages
		pkg.GET("/:id", h.GetPackage)                                 // GET /api/v1/packages/{id}
		pkg.PUT("/:id", h.UpdatePackage)                              // PUT /api/v1/packages/{id}
		pkg.DELETE("/:id", h.DeletePackage)                           // DELETE /api/v1/packages/{id}
		pkg.POST("/:id/submit", h.SubmitPackage)                      // POST /api/v1/packages/{id}/submit
		pkg.POST("/:id/cancel", h.CancelPackage)                      // POST /api/v1/packages/{id}/cancel
		pkg.GET("/:id/audit", audit.EntityLog(models.StreamPackage)) // GET /api/v1/packages/{id}/audit
	}
	registerTagging(e, c, pkg, "/packages", models.KindPackage)
}

// RegisterRecordRoutes registers record routes, tags included
func RegisterRecordRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRecordHandler(c)
	audit := handlers.NewAuditHandler(c)

	rec := apiGroup(e, c, "/records")
	{
		rec.POST("", h.CreateRecord)                                 // POST /api/v1/records
		rec.GET("/:id", h.GetRecord)                                 // GET /api/v1/records/{id}
		rec.PUT("/:id", h.UpdateRecord)                              // PUT /api/v1/records/{id}
		rec.DELETE("/:id", h.DeleteRecord)                           // DELETE /api/v1/records/{id}
		rec.GET("/:id/audit", audit.EntityLog(models.StreamRecord)) // GET /api/v1/records/{id}/audit
	}
	registerTagging(e, c, rec, "/records", models.KindRecord)
}

// registerTagging adds tag instance routes to an entity group and the
// administrative untag route
func registerTagging(e *echo.Echo, c *container.Container, g *echo.Group, prefix string, kind models.EntityKind) {
	h := handlers.NewTagHandler(c, kind)

	g.GET("/:id/tags", h.ListTagInstances)              // GET /api/v1/records/{id}/tags
	g.POST("/:id/tags", h.SetTag)                       // POST /api/v1/records/{id}/tags
	g.DELETE("/:id/tags/:instance_id", h.RemoveTag)     // DELETE /api/v1/records/{id}/tags/{instance_id}

	admin := adminGroup(e, c, prefix)
	admin.DELETE("/:id/tags/:instance_id", h.RemoveTagAdmin) // DELETE /api/v1/admin/records/{id}/tags/{instance_id}

	defs := apiGroup(e, c, "/tags/"+string(kind))
	defs.GET("", h.ListTags)        // GET /api/v1/tags/record
	defs.GET("/:tag_id", h.GetTag)  // GET /api/v1/tags/record/Record.QC
}
