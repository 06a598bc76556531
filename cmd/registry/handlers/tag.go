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

// TagHandler handles tag definitions and tag instances of one entity kind.
// Entity routes carry the entity id in the :id parameter.
type TagHandler struct {
	components *bootstrap.Components
	tagger     *service.Tagger
}

// NewTagHandler creates a tag handler for kind
func NewTagHandler(c *container.Container, kind models.EntityKind) *TagHandler {
	return &TagHandler{
		components: c.Components,
		tagger:     c.Taggers[kind],
	}
}

// ListTags lists the tag definitions of the entity kind
// GET /api/v1/tags/:kind
func (h *TagHandler) ListTags(c echo.Context) error {
	tags, err := h.tagger.ListTags(c.Request().Context())
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"kind":  h.tagger.Kind(),
		"tags":  tags,
		"count": len(tags),
	})
}

// GetTag retrieves a tag definition
// GET /api/v1/tags/:kind/:tag_id
func (h *TagHandler) GetTag(c echo.Context) error {
	tag, err := h.tagger.GetTag(c.Request().Context(), c.Param("tag_id"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, tag)
}

// ListTagInstances lists the tag instances on an entity
// GET /api/v1/{collections,packages,records}/:id/tags
func (h *TagHandler) ListTagInstances(c echo.Context) error {
	entityID := c.Param("id")

	instances, err := h.tagger.ListTagInstances(c.Request().Context(), entityID)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entity_id": entityID,
		"tags":      instances,
		"count":     len(instances),
	})
}

// SetTag applies a tag to an entity, inserting or updating an instance
// according to the tag's cardinality
// POST /api/v1/{collections,packages,records}/:id/tags
func (h *TagHandler) SetTag(c echo.Context) error {
	var req models.TagInstanceInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.TagID == "" {
		return badRequest(c, "tag_id is required")
	}

	inst, err := h.tagger.SetTag(c.Request().Context(), middleware.GetActor(c), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, inst)
}

// RemoveTag removes one of the caller's own tag instances
// DELETE /api/v1/{collections,packages,records}/:id/tags/:instance_id
func (h *TagHandler) RemoveTag(c echo.Context) error {
	return h.removeTag(c, false)
}

// RemoveTagAdmin removes any tag instance
// DELETE /api/v1/admin/{collections,packages,records}/:id/tags/:instance_id
func (h *TagHandler) RemoveTagAdmin(c echo.Context) error {
	return h.removeTag(c, true)
}

func (h *TagHandler) removeTag(c echo.Context, admin bool) error {
	err := h.tagger.RemoveTag(c.Request().Context(), middleware.GetActor(c), c.Param("id"), c.Param("instance_id"), admin)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
