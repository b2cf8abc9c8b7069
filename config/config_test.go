package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CACHE_ENABLED", "")
	t.Setenv("CACHE_TTL_SEC", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_TTL_SEC", "60")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, 0, cfg.Redis.DB, "unparsable ints fall back to the default")
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("CACHE_TTL_SEC", "-5")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "raven", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/raven?sslmode=disable", c.DSN())

	c.URL = "postgres://override/x"
	assert.Equal(t, "postgres://override/x", c.DSN())
}
