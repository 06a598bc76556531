package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/middleware"
	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/models"
)

// KeywordHandler handles vocabulary keyword requests
type KeywordHandler struct {
	components *bootstrap.Components
	keywords   *service.KeywordService
}

// NewKeywordHandler creates a new keyword handler
func NewKeywordHandler(c *container.Container) *KeywordHandler {
	return &KeywordHandler{
		components: c.Components,
		keywords:   c.Keywords,
	}
}

// ListAllKeywords lists keywords of all or the given vocabularies
// GET /api/v1/admin/keywords?vocabulary_id=Project&limit=50&offset=0
func (h *KeywordHandler) ListAllKeywords(c echo.Context) error {
	page, err := parsePage(c)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}

	result, err := h.keywords.ListAll(c.Request().Context(), c.QueryParams()["vocabulary_id"], page)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetAnyKeyword retrieves a keyword by id, whatever its status
// GET /api/v1/admin/keywords/id/:id
func (h *KeywordHandler) GetAnyKeyword(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "keyword id must be an integer")
	}

	kw, err := h.keywords.GetAny(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, kw)
}

// ListKeywords lists the approved keywords of a vocabulary
// GET /api/v1/keywords/:vocabulary_id?parent=...&include_proposed=true
func (h *KeywordHandler) ListKeywords(c echo.Context) error {
	var parent *string
	if p := c.QueryParam("parent"); p != "" {
		parent = &p
	}

	items, err := h.keywords.List(c.Request().Context(), c.Param("vocabulary_id"), parent, queryBool(c, "include_proposed"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"vocabulary_id": c.Param("vocabulary_id"),
		"keywords":      items,
		"count":         len(items),
	})
}

// GetKeyword retrieves an approved keyword by key
// GET /api/v1/keywords/:vocabulary_id/:key
func (h *KeywordHandler) GetKeyword(c echo.Context) error {
	kw, err := h.keywords.Get(c.Request().Context(), c.Param("vocabulary_id"), c.Param("key"))
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, kw)
}

// SuggestKeyword proposes a new keyword
// POST /api/v1/keywords/:vocabulary_id
func (h *KeywordHandler) SuggestKeyword(c echo.Context) error {
	var req models.KeywordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	kw, err := h.keywords.Suggest(c.Request().Context(), middleware.GetActor(c), c.Param("vocabulary_id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, kw)
}

// CreateKeyword creates a keyword with an explicit status
// POST /api/v1/admin/keywords/:vocabulary_id
func (h *KeywordHandler) CreateKeyword(c echo.Context) error {
	var req models.KeywordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	kw, err := h.keywords.Create(c.Request().Context(), middleware.GetActor(c), c.Param("vocabulary_id"), req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusCreated, kw)
}

// UpdateKeyword updates a keyword. An unchanged keyword yields 204.
// PUT /api/v1/admin/keywords/:vocabulary_id/:id
func (h *KeywordHandler) UpdateKeyword(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "keyword id must be an integer")
	}

	var req models.KeywordInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	kw, err := h.keywords.Update(c.Request().Context(), middleware.GetActor(c), c.Param("vocabulary_id"), id, req)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	if kw == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, kw)
}

// DeleteKeyword deletes a keyword without children
// DELETE /api/v1/admin/keywords/:vocabulary_id/:id
func (h *KeywordHandler) DeleteKeyword(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return badRequest(c, "keyword id must be an integer")
	}

	if err := h.keywords.Delete(c.Request().Context(), middleware.GetActor(c), c.Param("vocabulary_id"), id); err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
