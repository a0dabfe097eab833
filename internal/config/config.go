// Package config loads service configuration from a TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Minio    MinioConfig    `toml:"minio"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Facets   FacetsConfig   `toml:"facets"`
	Jobs     JobsConfig     `toml:"jobs"`
}

type ServerConfig struct {
	Port           int `toml:"port" validate:"min=1,max=65535"`
	RateLimit      int `toml:"rate_limit" validate:"gte=0"`
	RateWindowSecs int `toml:"rate_window_seconds" validate:"gte=1"`
}

// DatabaseConfig selects the Postgres catalogue. When URL is empty the
// service boots from the MinIO snapshot instead.
type DatabaseConfig struct {
	URL string `toml:"url"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr" validate:"required_if=Enabled true"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"gte=0"`
}

type MinioConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket" validate:"required_if=Enabled true"`
	Object    string `toml:"object" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool   `toml:"enabled"`
	Broker  string `toml:"broker" validate:"required_if=Enabled true"`
	Topic   string `toml:"topic"`
}

type FacetsConfig struct {
	HideOutOfStock      bool `toml:"hide_outofstock"`
	ChildCategories     bool `toml:"child_categories"`
	Concurrency         int  `toml:"concurrency" validate:"min=1,max=64"`
	CountTimeoutSecs    int  `toml:"count_timeout_seconds" validate:"min=1"`
	CountCacheTTLSecs   int  `toml:"count_cache_ttl_seconds" validate:"gte=0"`
	TaxonomyTTLSecs     int  `toml:"taxonomy_ttl_seconds" validate:"gte=0"`
	SessionTTLSecs      int  `toml:"session_ttl_seconds" validate:"min=60"`
	SessionIdleSecs     int  `toml:"session_idle_seconds" validate:"min=60"`
	DefaultProductsPage int  `toml:"products_per_page" validate:"min=1,max=200"`
}

type JobsConfig struct {
	TaxonomyRefreshCron string `toml:"taxonomy_refresh_cron" validate:"required"`
	SnapshotExportCron  string `toml:"snapshot_export_cron"`
	SessionSweepEvery   int    `toml:"session_sweep_seconds" validate:"min=1"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, RateLimit: 120, RateWindowSecs: 60},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Minio: MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "catalog",
			Object:    "taxonomy/snapshot.json.gz",
		},
		Kafka: KafkaConfig{Broker: "localhost:9092", Topic: "catalog.filters.changed"},
		Facets: FacetsConfig{
			ChildCategories:     true,
			Concurrency:         4,
			CountTimeoutSecs:    10,
			CountCacheTTLSecs:   300,
			TaxonomyTTLSecs:     900,
			SessionTTLSecs:      86400,
			SessionIdleSecs:     1800,
			DefaultProductsPage: 24,
		},
		Jobs: JobsConfig{
			TaxonomyRefreshCron: "*/15 * * * *",
			SnapshotExportCron:  "0 3 * * *",
			SessionSweepEvery:   300,
		},
	}
}

// Load reads filename over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		if _, err := toml.DecodeFile(filename, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if err := envInt("REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Minio.Endpoint = v
		c.Minio.Enabled = true
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		c.Minio.UseSSL = v == "true"
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.Minio.Bucket = v
	}

	if v := os.Getenv("KAFKA_BROKER"); v != "" {
		c.Kafka.Broker = v
		c.Kafka.Enabled = true
	}

	if err := envInt("PORT", &c.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv("HIDE_OUTOFSTOCK"); v != "" {
		c.Facets.HideOutOfStock = v == "true"
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (f FacetsConfig) CountTimeout() time.Duration  { return seconds(f.CountTimeoutSecs) }
func (f FacetsConfig) CountCacheTTL() time.Duration { return seconds(f.CountCacheTTLSecs) }
func (f FacetsConfig) TaxonomyTTL() time.Duration   { return seconds(f.TaxonomyTTLSecs) }
func (f FacetsConfig) SessionTTL() time.Duration    { return seconds(f.SessionTTLSecs) }
func (f FacetsConfig) SessionIdle() time.Duration   { return seconds(f.SessionIdleSecs) }
func (s ServerConfig) RateWindow() time.Duration    { return seconds(s.RateWindowSecs) }
func (j JobsConfig) SessionSweepInterval() time.Duration {
	return seconds(j.SessionSweepEvery)
}
