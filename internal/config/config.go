// Package config loads the CLI's YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend names a persistence backend.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// Config is the application configuration.
type Config struct {
	// Backend selects the store: memory, sqlite, postgres, or redis.
	Backend Backend `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr and RedisDB configure the redis backend.
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// Workers is the number of queue workers the work command runs.
	Workers int `yaml:"workers"`
}

// Default returns the zero-config setup: in-memory store, info logging,
// one worker.
func Default() Config {
	return Config{
		Backend:  BackendMemory,
		LogLevel: "info",
		Workers:  1,
	}
}

// Load reads a YAML config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite backend requires sqlite_path")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres backend requires postgres_dsn")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis backend requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
