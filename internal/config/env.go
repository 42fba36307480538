package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides holds settings read from the process environment. They sit
// between the config file and CLI flags in precedence.
type EnvOverrides struct {
	// Azure selects the ordered-delete strategy. Hosted PostgreSQL offerings
	// such as Azure Database for PostgreSQL refuse the superuser-only
	// session_replication_role switch.
	Azure       bool     `env:"DB_CLEANER_AZURE" envDefault:"false"`
	Strategy    string   `env:"GOCLEAN_STRATEGY"`
	Exclude     []string `env:"GOCLEAN_EXCLUDE" envSeparator:","`
	CacheTables *bool    `env:"GOCLEAN_CACHE_TABLES"`
	DatabaseURL string   `env:"GOCLEAN_DATABASE_URL"`
	LogLevel    string   `env:"GOCLEAN_LOG_LEVEL"`
}

// LoadEnvOverrides parses overrides from the process environment.
func LoadEnvOverrides() (EnvOverrides, error) {
	return LoadEnvOverridesFrom(nil)
}

// LoadEnvOverridesFrom parses overrides from vars. A nil map reads the
// process environment; an empty one reads nothing.
func LoadEnvOverridesFrom(vars map[string]string) (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: vars}); err != nil {
		return o, fmt.Errorf("parse environment: %w", err)
	}
	return o, nil
}

// ApplyEnv applies environment overrides. DB_CLEANER_AZURE wins over
// GOCLEAN_STRATEGY.
func (c *Config) ApplyEnv(o EnvOverrides) {
	if o.Strategy != "" {
		c.Cleaner.Strategy = o.Strategy
	}
	if o.Azure {
		c.Cleaner.Strategy = StrategyOrderedDelete
	}
	c.Cleaner.Exclude = mergeNames(c.Cleaner.Exclude, o.Exclude)
	if o.CacheTables != nil {
		c.Cleaner.CacheTables = *o.CacheTables
	}
	if o.DatabaseURL != "" {
		c.Database.DSN = o.DatabaseURL
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}
