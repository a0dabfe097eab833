package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogfacets.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Facets.Concurrency)
	assert.True(t, cfg.Facets.ChildCategories)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Facets.CountTimeout())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[redis]
enabled = true
addr = "cache:6379"

[facets]
hide_outofstock = true
concurrency = 8
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Facets.HideOutOfStock)
	assert.Equal(t, 8, cfg.Facets.Concurrency)
	assert.Equal(t, 24, cfg.Facets.DefaultProductsPage)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "[server]\nport = 9090\n")
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://catalog@db/catalog")
	t.Setenv("KAFKA_BROKER", "kafka:9092")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://catalog@db/catalog", cfg.Database.URL)
	assert.True(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Minio.UseSSL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("REDIS_DB", "one")
		_, err := Load("")
		assert.ErrorContains(t, err, "REDIS_DB")
	})

	t.Run("bad toml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[server\nport = 1"))
		assert.ErrorContains(t, err, "failed to load config file")
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[facets]\nconcurrency = 0\n"))
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("enabled kafka without broker", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[kafka]\nenabled = true\nbroker = \"\"\n"))
		assert.ErrorContains(t, err, "Broker")
	})
}
