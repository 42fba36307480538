// Package config provides configuration structures and loading for goclean.
package config

// Strategy names accepted in configuration, flags and environment.
const (
	StrategyTruncate      = "truncate"
	StrategyOrderedDelete = "ordered-delete"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config represents the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Cleaner  CleanerConfig  `yaml:"cleaner" mapstructure:"cleaner"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// DatabaseConfig represents the connection to the database being cleaned.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // mysql or postgres
	DSN      string `yaml:"dsn" mapstructure:"dsn"`       // full DSN / URL, overrides the fields below
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	Schema   string `yaml:"schema" mapstructure:"schema"` // postgres only; empty means current_schema()
	TLS      string `yaml:"tls" mapstructure:"tls"`       // disable, preferred, required
}

// CleanerConfig selects how a cleanup pass runs.
type CleanerConfig struct {
	Strategy            string   `yaml:"strategy" mapstructure:"strategy"` // truncate or ordered-delete
	Exclude             []string `yaml:"exclude" mapstructure:"exclude"`
	Only                []string `yaml:"only" mapstructure:"only"`
	CacheTables         bool     `yaml:"cache_tables" mapstructure:"cache_tables"`
	FallbackToAllTables bool     `yaml:"fallback_to_all_tables" mapstructure:"fallback_to_all_tables"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// MetricsConfig controls prometheus instrumentation of cleanup passes.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverMySQL,
			Port:   3306,
			TLS:    "preferred",
		},
		Cleaner: CleanerConfig{
			Strategy:            StrategyTruncate,
			CacheTables:         false,
			FallbackToAllTables: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "goclean",
		},
	}
}

// DefaultPort returns the conventional port for a driver.
func DefaultPort(driver string) int {
	if driver == DriverPostgres {
		return 5432
	}
	return 3306
}
