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

// PackageHandler handles package requests, including the submission pipeline
type PackageHandler struct {
	components *bootstrap.Components
	packages   *service.PackageService
}

// NewPackageHandler creates a new package handler
func NewPackageHandler(c *container.Container) *PackageHandler {
	return &PackageHandler{components: c.Components, packages: c.Packages}
}

// GetPackage retrieves a package
// GET /api/v1/packages/:id
func (h *PackageHandler) GetPackage(c echo.Context) error {
	pkg, err := h.packages.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// CreatePackage creates a pending package
// POST /api/v1/packages
func (h *PackageHandler) CreatePackage(c echo.Context) error {
	var req models.PackageInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Title == "" || req.ProviderID == "" || req.SchemaID == "" {
		return badRequest(c, "title, provider_id and schema_id are required")
	}

	pkg, err := h.packages.Create(c.Request().Context(), middleware.GetActor(c), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, pkg)
}

// UpdatePackage updates a package
// PUT /api/v1/packages/:id
func (h *PackageHandler) UpdatePackage(c echo.Context) error {
	var req models.PackageInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Title == "" || req.ProviderID == "" || req.SchemaID == "" {
		return badRequest(c, "title, provider_id and schema_id are required")
	}

	pkg, err := h.packages.Update(c.Request().Context(), middleware.GetActor(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// DeletePackage deletes a package without resources
// DELETE /api/v1/packages/:id
func (h *PackageHandler) DeletePackage(c echo.Context) error {
	if err := h.packages.Delete(c.Request().Context(), middleware.GetActor(c), c.Param("id")); err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SubmitPackage builds and validates the package metadata from its tags
// POST /api/v1/packages/:id/submit
func (h *PackageHandler) SubmitPackage(c echo.Context) error {
	pkg, err := h.packages.Submit(c.Request().Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

// CancelPackage reverts a submitted package to pending
// POST /api/v1/packages/:id/cancel
func (h *PackageHandler) CancelPackage(c echo.Context) error {
	pkg, err := h.packages.Cancel(c.Request().Context(), middleware.GetActor(c), c.Param("id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, pkg)
}
