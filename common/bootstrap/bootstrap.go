package bootstrap

import (
	"context"
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

// Setup initializes all service components.
// Components that fail after earlier ones were started are cleaned up before
// Setup returns the error.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{}

	// 1. Configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := components.Config

	// 2. Logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", cfg.Service.Environment,
	)

	fail := func(err error) (*Components, error) {
		_ = components.Shutdown(ctx)
		return nil, err
	}

	// 3. Schema catalog
	if !options.skipSchemas {
		components.Schemas, err = schema.Load(cfg.Schema.ManifestPath)
		if err != nil {
			return fail(fmt.Errorf("failed to load schemas: %w", err))
		}
		components.Logger.Info("schemas loaded",
			"manifest", cfg.Schema.ManifestPath,
			"count", len(components.Schemas.Entries()),
		)
	}

	// 4. Entity store
	if !options.skipStore {
		if err := setupStore(ctx, components, options); err != nil {
			return fail(err)
		}
	}

	// 5. Cache
	if !options.skipCache && cfg.Cache.Enabled {
		components.Logger.Info("initializing cache", "type", cfg.Cache.Type)

		switch cfg.Cache.Type {
		case "memory":
			components.Cache = cache.NewMemoryCache(components.Logger)
		case "redis":
			components.Redis, err = redis.Dial(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB, components.Logger)
			if err != nil {
				return fail(fmt.Errorf("failed to connect to redis: %w", err))
			}
			components.Cache = cache.NewRedisCache(components.Redis, serviceName+":")
		default:
			return fail(fmt.Errorf("unknown cache type: %s", cfg.Cache.Type))
		}

		// RedisCache.Close closes the shared client.
		components.addCleanup(func() error {
			components.Logger.Info("closing cache")
			return components.Cache.Close()
		})
	}

	// 6. Telemetry
	if !options.skipTelemetry {
		components.Telemetry = telemetry.New(
			cfg.Telemetry.PprofPort,
			cfg.Telemetry.MetricsPort,
			cfg.Telemetry.EnablePprof,
			components.Logger,
		)

		if cfg.Telemetry.EnableMetrics || cfg.Telemetry.EnablePprof {
			if err := components.Telemetry.Start(ctx); err != nil {
				// Don't fail startup if telemetry fails
				components.Logger.Warn("failed to start telemetry", "error", err)
			}
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"store", cfg.Store.Type,
		"db", components.DB != nil,
		"cache", components.Cache != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func setupStore(ctx context.Context, components *Components, options *options) error {
	cfg := components.Config
	log := components.Logger

	switch cfg.Store.Type {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		components.Store = repository.NewMemoryStore()

	case "postgres":
		log.Info("connecting to database")
		database, err := db.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DB = database

		if options.dbInitHook != nil {
			log.Info("running database init hook")
			if err := options.dbInitHook(ctx, database); err != nil {
				database.Close()
				return fmt.Errorf("database init hook failed: %w", err)
			}
		}

		if cfg.Database.Migrate {
			log.Info("applying database schema")
			if err := repository.Migrate(ctx, database); err != nil {
				database.Close()
				return err
			}
		}
		components.Store = repository.NewPostgresStore(database)

	default:
		return fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}

	components.addCleanup(func() error {
		log.Info("closing store")
		components.Store.Close()
		return nil
	})

	if cfg.Store.FixturesPath != "" {
		fixtures, err := repository.LoadFixtures(cfg.Store.FixturesPath)
		if err != nil {
			return err
		}
		if err := repository.Seed(ctx, components.Store, fixtures); err != nil {
			return fmt.Errorf("failed to seed fixtures: %w", err)
		}
		log.Info("fixtures seeded", "path", cfg.Store.FixturesPath,
			"tags", len(fixtures.Tags),
			"vocabularies", len(fixtures.Vocabularies),
			"catalogs", len(fixtures.Catalogs),
		)
	}
	return nil
}

// MustSetup is like Setup but panics on error
func MustSetup(ctx context.Context, serviceName string, opts ...Option) *Components {
	components, err := Setup(ctx, serviceName, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to setup service %s: %v", serviceName, err))
	}
	return components
}
