package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Brewy server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Webhook  WebhookConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// StorageConfig configures the S3-compatible blob store holding uploaded audio.
type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	MaxUploadBytes int64
	PresignExpiry  time.Duration
}

// WebhookConfig configures the outbound trigger to the workflow engine.
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// JobsConfig configures admission control and the stale-job reaper.
// A StaleTimeout of zero disables the reaper; jobs that never receive a
// callback then occupy a concurrency slot until failed out of band.
type JobsConfig struct {
	DefaultMaxConcurrent int
	StaleTimeout         time.Duration
	ReaperInterval       time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("BREWY_PORT", 8080),
			Env:  envString("BREWY_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Endpoint:       os.Getenv("STORAGE_ENDPOINT"),
			AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:         envString("STORAGE_BUCKET", "brewy-audio"),
			UseSSL:         envBool("STORAGE_USE_SSL", false),
			MaxUploadBytes: envInt64("STORAGE_MAX_UPLOAD_BYTES", 50<<20),
			PresignExpiry:  envDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("WEBHOOK_URL"),
			Secret:  os.Getenv("WEBHOOK_SECRET"),
			Timeout: envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Jobs: JobsConfig{
			DefaultMaxConcurrent: envInt("JOBS_DEFAULT_MAX_CONCURRENT", 10),
			StaleTimeout:         envDuration("JOBS_STALE_TIMEOUT", 0),
			ReaperInterval:       envDuration("JOBS_REAPER_INTERVAL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}

	if c.Webhook.URL == "" {
		return fmt.Errorf("WEBHOOK_URL is required")
	}
	if !strings.HasPrefix(c.Webhook.URL, "http://") && !strings.HasPrefix(c.Webhook.URL, "https://") {
		return fmt.Errorf("WEBHOOK_URL must start with http:// or https://, got %q", c.Webhook.URL)
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive, got %s", c.Webhook.Timeout)
	}

	if c.Jobs.DefaultMaxConcurrent <= 0 {
		return fmt.Errorf("JOBS_DEFAULT_MAX_CONCURRENT must be positive, got %d", c.Jobs.DefaultMaxConcurrent)
	}
	if c.Jobs.StaleTimeout < 0 {
		return fmt.Errorf("JOBS_STALE_TIMEOUT must not be negative, got %s", c.Jobs.StaleTimeout)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
