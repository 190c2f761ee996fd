// Copyright (c) 2026 Renpho Health Bridge. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ra486/hacs-renpho-health/internal/platform/validate"
)

// Refresh interval bounds, in seconds. The vendor API tolerates at most one
// poll every five minutes; anything above a day makes the data pointless.
const (
	MinRefreshIntervalSeconds = 300
	MaxRefreshIntervalSeconds = 86400
)

// # Configuration Schema

// Config holds all runtime configuration for the renphod daemon.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8093"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Renpho account credentials. Supplied once at setup; immutable for
	// the lifetime of the configured account.
	Email    string `env:"RENPHO_EMAIL,required"`
	Password string `env:"RENPHO_PASSWORD,required"`

	// SessionToken optionally seeds the session from a token shared by the
	// vendor's mobile app. When set, automatic re-login is disabled so the
	// daemon cannot invalidate the app's session.
	SessionToken string `env:"RENPHO_SESSION_TOKEN"`

	// RefreshIntervalSeconds is the polling cadence for new measurements.
	RefreshIntervalSeconds int `env:"REFRESH_INTERVAL" envDefault:"3600"`

	// Key-Value store (Redis) for the persisted session document.
	RedisURL string `env:"REDIS_URL,required"`

	// Optional PostgreSQL DSN. When set, every fetched measurement is also
	// recorded in the history table.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates
// the result.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field-level constraints that 'required' tags cannot express.
func (c *Config) Validate() error {
	v := &validate.Validator{}
	v.Required("RENPHO_EMAIL", c.Email)
	v.Email("RENPHO_EMAIL", c.Email)
	v.Required("RENPHO_PASSWORD", c.Password)
	v.Range("REFRESH_INTERVAL", c.RefreshIntervalSeconds, MinRefreshIntervalSeconds, MaxRefreshIntervalSeconds)

	if err := v.Err(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RefreshInterval returns the polling cadence as a [time.Duration].
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// HistoryEnabled reports whether the PostgreSQL measurement history is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// IsDevelopment reports whether the daemon is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the daemon is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
