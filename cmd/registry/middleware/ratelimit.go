package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opendataplatform/registry/common/config"
	"github.com/opendataplatform/registry/common/ratelimit"
)

// isInternalRequest checks if the request is from an internal service.
// Internal services send the shared secret in X-Internal-Service.
func isInternalRequest(c echo.Context, secret string) bool {
	if secret == "" {
		return false
	}
	return c.Request().Header.Get("X-Internal-Service") == secret
}

// ClientRateLimit applies per-client quotas, counting reads and writes
// separately. Requires the actor to be set by ExtractActor.
// A nil limiter disables the middleware.
func ClientRateLimit(limiter *ratelimit.Limiter, cfg config.RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			if isInternalRequest(c, cfg.InternalSecret) {
				return next(c)
			}

			clientID := GetActor(c).ClientID
			if clientID == "" {
				return next(c)
			}

			class, limit := ratelimit.ClassWrite, cfg.Writes
			if m := c.Request().Method; m == http.MethodGet || m == http.MethodHead {
				class, limit = ratelimit.ClassRead, cfg.Reads
			}

			result, err := limiter.CheckClientLimit(c.Request().Context(), clientID, class, limit, cfg.WindowSeconds)
			if err != nil {
				// On error, allow the request
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"client_id":           clientID,
						"class":               class,
						"limit":               result.Limit,
						"window_seconds":      cfg.WindowSeconds,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
