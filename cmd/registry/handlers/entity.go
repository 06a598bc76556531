package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/middleware"
	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/models"
)

// ProviderHandler handles provider requests
type ProviderHandler struct {
	components *bootstrap.Components
	providers  *service.ProviderService
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(c *container.Container) *ProviderHandler {
	return &ProviderHandler{components: c.Components, providers: c.Providers}
}

// GetProvider retrieves a provider
// GET /api/v1/providers/:id
func (h *ProviderHandler) GetProvider(c echo.Context) error {
	p, err := h.providers.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, p)
}

// CreateProvider creates a provider
// POST /api/v1/providers
func (h *ProviderHandler) CreateProvider(c echo.Context) error {
	var req models.ProviderInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Key == "" || req.Name == "" {
		return badRequest(c, "key and name are required")
	}

	p, err := h.providers.Create(c.Request().Context(), middleware.GetActor(c), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// DeleteProvider deletes a provider without collections or packages
// DELETE /api/v1/providers/:id
func (h *ProviderHandler) DeleteProvider(c echo.Context) error {
	if err := h.providers.Delete(c.Request().Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CollectionHandler handles collection requests
type CollectionHandler struct {
	components  *bootstrap.Components
	collections *service.CollectionService
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(c *container.Container) *CollectionHandler {
	return &CollectionHandler{components: c.Components, collections: c.Collections}
}

// GetCollection retrieves a collection
// GET /api/v1/collections/:id
func (h *CollectionHandler) GetCollection(c echo.Context) error {
	col, err := h.collections.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, col)
}

// CreateCollection creates a collection
// POST /api/v1/collections
func (h *CollectionHandler) CreateCollection(c echo.Context) error {
	var req models.CollectionInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.ProviderID == "" {
		return badRequest(c, "name and provider_id are required")
	}

	col, err := h.collections.Create(c.Request().Context(), middleware.GetActor(c), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, col)
}

// UpdateCollection updates a collection
// PUT /api/v1/collections/:id
func (h *CollectionHandler) UpdateCollection(c echo.Context) error {
	var req models.CollectionInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" || req.ProviderID == "" {
		return badRequest(c, "name and provider_id are required")
	}

	col, err := h.collections.Update(c.Request().Context(), middleware.GetActor(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, col)
}

// DeleteCollection deletes an empty collection
// DELETE /api/v1/collections/:id
func (h *CollectionHandler) DeleteCollection(c echo.Context) error {
	if err := h.collections.Delete(c.Request().Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RecordHandler handles metadata record requests
type RecordHandler struct {
	components *bootstrap.Components
	records    *service.RecordService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(c *container.Container) *RecordHandler {
	return &RecordHandler{components: c.Components, records: c.Records}
}

// GetRecord retrieves a record
// GET /api/v1/records/:id
func (h *RecordHandler) GetRecord(c echo.Context) error {
	r, err := h.records.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CreateRecord creates a record; its metadata is validated against its schema
// POST /api/v1/records
func (h *RecordHandler) CreateRecord(c echo.Context) error {
	var req models.RecordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	r, err := h.records.Create(c.Request().Context(), middleware.GetActor(c), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// UpdateRecord updates a record
// PUT /api/v1/records/:id
func (h *RecordHandler) UpdateRecord(c echo.Context) error {
	var req models.RecordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	r, err := h.records.Update(c.Request().Context(), middleware.GetActor(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteRecord deletes a record without child records
// DELETE /api/v1/records/:id
func (h *RecordHandler) DeleteRecord(c echo.Context) error {
	if err := h.records.Delete(c.Request().Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
