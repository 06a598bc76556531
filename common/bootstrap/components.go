package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/opendataplatform/registry/common/cache"
	"github.com/opendataplatform/registry/common/config"
	"github.com/opendataplatform/registry/common/db"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/redis"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
	"github.com/opendataplatform/registry/common/telemetry"
)

// Components holds all initialized service dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.DB // nil unless the store is Postgres
	Store     repository.Store
	Cache     cache.Cache
	Redis     *redis.Client
	Telemetry *telemetry.Telemetry
	Schemas   *schema.Registry

	cleanupFuncs []func() error
}

// Metrics returns the service metrics, or nil when telemetry is disabled
func (c *Components) Metrics() *telemetry.Metrics {
	if c.Telemetry == nil {
		return nil
	}
	return c.Telemetry.Metrics
}

// Shutdown runs cleanup functions in reverse registration order
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}
	c.cleanupFuncs = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks the store and, when configured, Redis
func (c *Components) Health(ctx context.Context) error {
	if c.Store != nil {
		if err := c.Store.Health(ctx); err != nil {
			return fmt.Errorf("store unhealthy: %w", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}
	return nil
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
