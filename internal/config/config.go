package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Salescope server.
// Loaded once at startup and passed explicitly into constructors.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Forecast ForecastConfig
	Auth     AuthConfig
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

// StorageConfig configures the MinIO object store that holds dataset files.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// ForecastConfig configures the external forecast compute service.
type ForecastConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// JobsConfig governs the watchdog that fails jobs stuck in running state,
// e.g. after a process restart mid-job.
type JobsConfig struct {
	StuckAfter       time.Duration
	WatchdogInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SALESCOPE_PORT", 8080),
			Env:  envString("SALESCOPE_ENV", "development"),
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
			Endpoint:      envString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:     os.Getenv("MINIO_SECRET_KEY"),
			Bucket:        envString("MINIO_BUCKET", "salescope-datasets"),
			UseSSL:        os.Getenv("MINIO_USE_SSL") == "true",
			PresignExpiry: envDuration("MINIO_PRESIGN_EXPIRY", time.Hour),
		},
		Forecast: ForecastConfig{
			BaseURL: os.Getenv("FORECAST_BASE_URL"),
			Timeout: envDuration("FORECAST_TIMEOUT", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  envDuration("JWT_TOKEN_TTL", 168*time.Hour),
		},
		Jobs: JobsConfig{
			StuckAfter:       envDuration("JOBS_STUCK_AFTER", 0),
			WatchdogInterval: envDuration("JOBS_WATCHDOG_INTERVAL", time.Minute),
		},
	}

	// A running job is considered stuck once it outlives the forecast timeout.
	if cfg.Jobs.StuckAfter <= 0 {
		cfg.Jobs.StuckAfter = cfg.Forecast.Timeout
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

	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
	}

	if c.Forecast.BaseURL == "" {
		return fmt.Errorf("FORECAST_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Forecast.BaseURL, "http://") && !strings.HasPrefix(c.Forecast.BaseURL, "https://") {
		return fmt.Errorf("FORECAST_BASE_URL must start with http:// or https://, got %q", c.Forecast.BaseURL)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
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
