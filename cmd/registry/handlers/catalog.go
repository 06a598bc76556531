package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/cmd/registry/worker"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/queue"
)

// CatalogHandler triggers publication and serves catalog records
type CatalogHandler struct {
	components *bootstrap.Components
	publisher  *service.Publisher
	queue      queue.Queue
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(c *container.Container) *CatalogHandler {
	return &CatalogHandler{components: c.Components, publisher: c.Publisher, queue: c.Queue}
}

// PublishAll runs publication for every catalog
// POST /api/v1/admin/catalogs/publish?async=true
func (h *CatalogHandler) PublishAll(c echo.Context) error {
	if queryBool(c, "async") {
		return h.enqueue(c, "")
	}

	results, err := h.publisher.PublishAll(c.Request().Context())
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// Publish runs publication for one catalog
// POST /api/v1/admin/catalogs/:catalog_id/publish?async=true
func (h *CatalogHandler) Publish(c echo.Context) error {
	if queryBool(c, "async") {
		return h.enqueue(c, c.Param("catalog_id"))
	}

	result, err := h.publisher.Publish(c.Request().Context(), c.Param("catalog_id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// ListCatalogRecords lists a catalog's records
// GET /api/v1/catalogs/:catalog_id/records?published=true&limit=50
func (h *CatalogHandler) ListCatalogRecords(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}

	items, total, err := h.publisher.CatalogRecords(c.Request().Context(), c.Param("catalog_id"), queryBool(c, "published"), page)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"catalog_id": c.Param("catalog_id"),
		"items":      items,
		"total":      total,
	})
}

// GetCatalogRecord retrieves the publication state of a record
// GET /api/v1/catalogs/:catalog_id/records/:record_id
func (h *CatalogHandler) GetCatalogRecord(c echo.Context) error {
	cr, err := h.publisher.CatalogRecord(c.Request().Context(), c.Param("catalog_id"), c.Param("record_id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, cr)
}

// enqueue hands a publication run to the background worker
func (h *CatalogHandler) enqueue(c echo.Context, catalogID string) error {
	if err := worker.RequestPublish(c.Request().Context(), h.queue, catalogID); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"error": "publication queue is full",
				"kind":  "unavailable",
			})
		}
		return respondError(c, h.components.Logger, err)
	}

	target := catalogID
	if target == "" {
		target = "all"
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"queued": target,
	})
}
