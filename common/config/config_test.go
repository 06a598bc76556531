package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_TYPE", "memory")

	cfg, err := Load("registry")
	require.NoError(t, err)

	assert.Equal(t, "registry", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, "10.15493", cfg.Catalog.DOIPrefix)
	assert.Empty(t, cfg.Catalog.DataCiteUsername)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "catalog")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("MIGRATE", "true")

	cfg, err := Load("registry")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, "postgres://odp:odp@db:5432/catalog?sslmode=disable", cfg.DatabaseURL())
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Service:  ServiceConfig{Port: 8080},
			Database: DatabaseConfig{Host: "localhost", MaxConns: 10, MinConns: 2},
			Store:    StoreConfig{Type: "postgres"},
			Cache:    CacheConfig{Enabled: true, Type: "memory"},
			Schema:   SchemaConfig{ManifestPath: "schemas/manifest.yaml"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Service.Port = 0 }, "invalid port"},
		{"unknown store", func(c *Config) { c.Store.Type = "mysql" }, "unknown store type"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database host is required"},
		{"memory store ignores db", func(c *Config) { c.Store.Type = "memory"; c.Database.Host = "" }, ""},
		{"pool sizes", func(c *Config) { c.Database.MinConns = 20 }, "max_conns"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "unknown cache type"},
		{"redis cache without host", func(c *Config) { c.Cache.Type = "redis" }, "redis host"},
		{"disabled cache skips type", func(c *Config) { c.Cache.Enabled = false; c.Cache.Type = "" }, ""},
		{"missing manifest", func(c *Config) { c.Schema.ManifestPath = "" }, "schema manifest"},
		{"rate limit needs redis", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true, WindowSeconds: 60} }, "requires the redis cache"},
		{"rate limit window", func(c *Config) {
			c.Cache.Type = "redis"
			c.Redis.Host = "cache"
			c.RateLimit = RateLimitConfig{Enabled: true}
		}, "rate limit window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
