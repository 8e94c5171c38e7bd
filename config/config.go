// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Batch    BatchConfig
	Lock     LockConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level string
}

// BatchConfig holds the daily batch publish settings.
type BatchConfig struct {
	// Key is the shared secret expected in the X-Batch-Key header.
	Key              string
	CronSchedule     string
	Timezone         string
	TargetOffsetDays int
	Concurrency      int
	SchedulerEnabled bool
	// RunTimeout bounds one scheduled batch run.
	RunTimeout time.Duration
}

// LockConfig selects the per-key locker. An empty RedisAddress means in-process locks.
type LockConfig struct {
	RedisAddress string
	TTL          time.Duration
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	offset, err := getenvInt("BATCH_TARGET_OFFSET_DAYS", 0)
	if err != nil {
		return nil, err
	}
	concurrency, err := getenvInt("BATCH_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	enabled, err := getenvBool("BATCH_SCHEDULER_ENABLED", true)
	if err != nil {
		return nil, err
	}
	runTimeout, err := getenvDuration("BATCH_RUN_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	ttl, err := getenvDuration("LOCK_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getenvWithDefault("APP_PORT", "8080"),
			CORSOrigins: splitList(getenvWithDefault("CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Path: getenvWithDefault("DB_PATH", "barsheet.db"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Batch: BatchConfig{
			Key:              os.Getenv("BATCH_PUBLISH_KEY"),
			CronSchedule:     getenvWithDefault("BATCH_CRON_SCHEDULE", "10 18 * * *"),
			Timezone:         getenvWithDefault("BATCH_TIMEZONE", "UTC"),
			TargetOffsetDays: offset,
			Concurrency:      concurrency,
			SchedulerEnabled: enabled,
			RunTimeout:       runTimeout,
		},
		Lock: LockConfig{
			RedisAddress: os.Getenv("REDIS_ADDRESS"),
			TTL:          ttl,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Database.Path == "" {
		return errors.New("DB_PATH must be provided")
	}
	if c.Batch.Key == "" {
		return errors.New("BATCH_PUBLISH_KEY must be provided")
	}
	if c.Batch.Concurrency < 1 {
		return errors.New("BATCH_CONCURRENCY must be at least 1")
	}
	if _, err := time.LoadLocation(c.Batch.Timezone); err != nil {
		return fmt.Errorf("BATCH_TIMEZONE %q is not a valid location: %w", c.Batch.Timezone, err)
	}
	if c.Batch.RunTimeout <= 0 {
		return errors.New("BATCH_RUN_TIMEOUT must be positive")
	}
	if c.Lock.TTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}

	return nil
}

// Location returns the scheduler's time zone. Validate has already checked it.
func (b BatchConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvWithDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
