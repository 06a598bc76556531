package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Cache     CacheConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Schema    SchemaConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	Migrate     bool
}

// StoreConfig selects the entity store backend
type StoreConfig struct {
	Type         string // "memory" for development, "postgres" for production
	FixturesPath string
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	Type       string // "memory" or "redis"
	DefaultTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// SchemaConfig locates the schema catalog manifest
type SchemaConfig struct {
	ManifestPath string
}

// CatalogConfig holds publication settings
type CatalogConfig struct {
	DOIPrefix    string
	DOIReturnURL string

	// DataCite REST API credentials; syncing is disabled without a username
	DataCiteURL      string
	DataCiteUsername string
	DataCitePassword string
	DataCiteTimeout  time.Duration
}

// RateLimitConfig holds per-client API rate limits. Counters live in Redis.
type RateLimitConfig struct {
	Enabled        bool
	Reads          int64 // GET requests per window per client
	Writes         int64 // mutating requests per window per client
	WindowSeconds  int
	InternalSecret string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "odp"),
			User:        getEnv("POSTGRES_USER", "odp"),
			Password:    getEnv("POSTGRES_PASSWORD", "odp"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			Migrate:     getEnvBool("MIGRATE", false),
		},
		Store: StoreConfig{
			Type:         getEnv("STORE_TYPE", "postgres"),
			FixturesPath: getEnv("FIXTURES_PATH", ""),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Type:       getEnv("CACHE_TYPE", "memory"),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
		Schema: SchemaConfig{
			ManifestPath: getEnv("SCHEMA_MANIFEST", "schemas/manifest.yaml"),
		},
		Catalog: CatalogConfig{
			DOIPrefix:    getEnv("DOI_PREFIX", "10.15493"),
			DOIReturnURL: getEnv("DOI_RETURN_URL", "https://catalogue.saeon.ac.za/records"),

			DataCiteURL:      getEnv("DATACITE_API_URL", "https://api.test.datacite.org"),
			DataCiteUsername: getEnv("DATACITE_USERNAME", ""),
			DataCitePassword: getEnv("DATACITE_PASSWORD", ""),
			DataCiteTimeout:  getEnvDuration("DATACITE_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", false),
			Reads:          int64(getEnvInt("RATE_LIMIT_READS", 600)),
			Writes:         int64(getEnvInt("RATE_LIMIT_WRITES", 120)),
			WindowSeconds:  getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			InternalSecret: getEnv("INTERNAL_SERVICE_SECRET", ""),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "memory":
		case "redis":
			if c.Redis.Host == "" {
				return fmt.Errorf("redis host is required for redis cache")
			}
		default:
			return fmt.Errorf("unknown cache type: %s", c.Cache.Type)
		}
	}

	if c.Schema.ManifestPath == "" {
		return fmt.Errorf("schema manifest path is required")
	}

	if c.RateLimit.Enabled {
		if !c.Cache.Enabled || c.Cache.Type != "redis" {
			return fmt.Errorf("rate limiting requires the redis cache")
		}
		if c.RateLimit.WindowSeconds < 1 {
			return fmt.Errorf("invalid rate limit window: %d", c.RateLimit.WindowSeconds)
		}
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the host:port of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
