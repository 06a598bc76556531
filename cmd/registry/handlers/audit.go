package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/cmd/registry/container"
	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/models"
)

// AuditHandler serves audit log queries
type AuditHandler struct {
	components *bootstrap.Components
	audit      *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(c *container.Container) *AuditHandler {
	return &AuditHandler{components: c.Components, audit: c.AuditLog}
}

// EntityLog returns a handler listing the audit history of one entity of
// stream, tag instance changes included
// GET /api/v1/{providers,collections,packages,records}/:id/audit
func (h *AuditHandler) EntityLog(stream models.AuditStream) echo.HandlerFunc {
	return func(c echo.Context) error {
		entityID := c.Param("id")

		entries, err := h.audit.EntityLog(c.Request().Context(), stream, entityID)
		if err != nil {
			return respondError(c, h.components.Logger, err)
		}
		if entries == nil {
			entries = []*service.AuditLogEntry{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"entity_id": entityID,
			"entries":   entries,
			"count":     len(entries),
		})
	}
}

// GetAuditEntry returns one audit record with its snapshot
// GET /api/v1/audit/:stream/:audit_id
func (h *AuditHandler) GetAuditEntry(c echo.Context) error {
	stream := models.AuditStream(c.Param("stream"))
	if !knownStream(stream) {
		return badRequest(c, "unknown audit stream")
	}

	auditID, err := strconv.ParseInt(c.Param("audit_id"), 10, 64)
	if err != nil {
		return badRequest(c, "audit_id must be an integer")
	}

	rec, err := h.audit.GetEntry(c.Request().Context(), stream, auditID)
	if err != nil {
		return respondError(c, h.components.Logger, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func knownStream(stream models.AuditStream) bool {
	for _, s := range models.AuditStreams {
		if s == stream {
			return true
		}
	}
	return false
}
