// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Validate reports every problem wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone works on hosts without zoneinfo

	"github.com/okian/tally/internal/domain/model"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver picks the store: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `koanf:"postgres_dsn"`

	// Timezone is the IANA zone whose Mondays start a scoring week.
	Timezone string `koanf:"timezone"`

	// CollationLocale orders tied scores by name, e.g. "en" or "sv".
	CollationLocale string `koanf:"collation_locale"`

	// MaxNameLength bounds person and action names, in characters.
	MaxNameLength int `koanf:"max_name_length"`

	// FanoutWarningThreshold is how many people one assignment may target
	// before validation warns.
	FanoutWarningThreshold int `koanf:"fanout_warning_threshold"`

	// DefaultRewardValue and DefaultPunishmentValue are recommended while
	// no action of that kind exists.
	DefaultRewardValue     int64 `koanf:"default_reward_value"`
	DefaultPunishmentValue int64 `koanf:"default_punishment_value"`

	// MaxRecentLimit caps GET /assignments?recent.
	MaxRecentLimit int `koanf:"max_recent_limit"`

	// IdempotencyCacheSize is how many Idempotency-Key outcomes of
	// POST /assignments are remembered. Zero disables the cache.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		StorageDriver:          DriverMemory,
		SQLitePath:             "tally.db",
		Timezone:               "UTC",
		CollationLocale:        "en",
		MaxNameLength:          model.DefaultMaxNameLength,
		FanoutWarningThreshold: 5,
		DefaultRewardValue:     10,
		DefaultPunishmentValue: -10,
		MaxRecentLimit:         100,
		IdempotencyCacheSize:   10000,
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		add("addr must not be empty")
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			add("sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			add("postgres_dsn is required for the postgres driver")
		}
	default:
		add("storage_driver must be %q, %q or %q, got %q", DriverMemory, DriverSQLite, DriverPostgres, c.StorageDriver)
	}
	if _, err := c.Location(); err != nil {
		add("timezone: %w", err)
	}
	if _, err := c.Collation(); err != nil {
		add("collation_locale: %w", err)
	}
	if c.MaxNameLength <= 0 {
		add("max_name_length must be positive, got %d", c.MaxNameLength)
	}
	if c.FanoutWarningThreshold <= 0 {
		add("fanout_warning_threshold must be positive, got %d", c.FanoutWarningThreshold)
	}
	if c.MaxRecentLimit <= 0 {
		add("max_recent_limit must be positive, got %d", c.MaxRecentLimit)
	}
	if c.IdempotencyCacheSize < 0 {
		add("idempotency_cache_size must not be negative, got %d", c.IdempotencyCacheSize)
	}
	if !model.KindReward.Allows(c.DefaultRewardValue) {
		add("default_reward_value must be positive, got %d", c.DefaultRewardValue)
	}
	if !model.KindPunishment.Allows(c.DefaultPunishmentValue) {
		add("default_punishment_value must be negative, got %d", c.DefaultPunishmentValue)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Collation resolves CollationLocale.
func (c *Config) Collation() (model.Collation, error) {
	return model.ParseCollation(c.CollationLocale)
}
