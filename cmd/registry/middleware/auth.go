package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/common/clients"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for the acting client and user
	ActorKey ContextKey = "actor"
	// ScopesKey is the context key for the scopes granted to the request
	ScopesKey ContextKey = "scopes"
)

// ScopeAdmin grants the administrative operations: keyword curation,
// removing tags set by other users, and catalog publication.
const ScopeAdmin = "odp.admin"

// ExtractActor reads the identity resolved by the upstream token gateway:
// X-Client-ID (required), X-User-ID (absent for client-credential tokens)
// and X-Scopes (space or comma separated).
//
// Accessing in handlers:
//
//	actor := middleware.GetActor(c)
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header

			clientID := header.Get("X-Client-ID")
			if clientID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "X-Client-ID header is required",
				})
			}

			actor := models.Actor{ClientID: clientID}
			if userID := header.Get("X-User-ID"); userID != "" {
				actor.UserID = &userID
			}

			c.Set(string(ActorKey), actor)
			c.Set(string(ScopesKey), strings.FieldsFunc(header.Get("X-Scopes"), func(r rune) bool {
				return r == ' ' || r == ','
			}))
			return next(c)
		}
	}
}

// RequireScope rejects requests that were not granted scope
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasScope(c, scope) {
				return c.JSON(http.StatusForbidden, map[string]interface{}{
					"error": "scope " + scope + " is required",
				})
			}
			return next(c)
		}
	}
}

// PropagateRequestID copies the id assigned by echo's RequestID middleware
// into the request context, for logging and outbound calls
func PropagateRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if requestID := c.Response().Header().Get(echo.HeaderXRequestID); requestID != "" {
				ctx := context.WithValue(c.Request().Context(), logger.RequestIDKey, requestID)
				ctx = clients.WithRequestID(ctx, requestID)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	}
}

// GetActor retrieves the actor from the request context
func GetActor(c echo.Context) models.Actor {
	actor, _ := c.Get(string(ActorKey)).(models.Actor)
	return actor
}

// HasScope reports whether the request was granted scope
func HasScope(c echo.Context, scope string) bool {
	scopes, _ := c.Get(string(ScopesKey)).([]string)
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
