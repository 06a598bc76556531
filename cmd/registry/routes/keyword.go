package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/handlers"
)

// RegisterKeywordRoutes registers vocabulary keyword routes
func RegisterKeywordRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewKeywordHandler(c)

	kw := apiGroup(e, c, "/keywords")
	{
		kw.GET("/:vocabulary_id", h.ListKeywords)        // GET /api/v1/keywords/Project?parent=...
		kw.GET("/:vocabulary_id/:key", h.GetKeyword)     // GET /api/v1/keywords/Project/ABC
		kw.POST("/:vocabulary_id", h.SuggestKeyword)     // POST /api/v1/keywords/Project
	}

	admin := adminGroup(e, c, "/keywords")
	{
		admin.GET("", h.ListAllKeywords)                  // GET /api/v1/admin/keywords?vocabulary_id=Project
		admin.GET("/id/:id", h.GetAnyKeyword)             // GET /api/v1/admin/keywords/id/42
		admin.POST("/:vocabulary_id", h.CreateKeyword)    // POST /api/v1/admin/keywords/Project
		admin.PUT("/:vocabulary_id/:id", h.UpdateKeyword) // PUT /api/v1/admin/keywords/Project/42
		admin.DELETE("/:vocabulary_id/:id", h.DeleteKeyword)
	}
}
