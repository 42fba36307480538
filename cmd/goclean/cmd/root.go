package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goclean/internal/config"
	"github.com/dbsmedya/goclean/internal/logger"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file and environment values
var (
	cfgFile     string
	logLevel    string
	logFormat   string
	strategy    string
	exclude     []string
	cacheTables bool
)

var rootCmd = &cobra.Command{
	Use:   "goclean",
	Short: "Database cleaner for test suites",
	Long: `goclean empties the tables of a MySQL or PostgreSQL database between
test runs while respecting foreign keys.

Strategies:
  - truncate:       disable referential checks for the session and empty
                    only the tables that hold rows
  - ordered-delete: empty every table in foreign-key order with checks on

Environment:
  DB_CLEANER_AZURE=true   force ordered-delete
  GOCLEAN_STRATEGY        truncate or ordered-delete
  GOCLEAN_EXCLUDE         comma separated tables to keep
  GOCLEAN_CACHE_TABLES    reuse the row-count statement
  GOCLEAN_DATABASE_URL    full DSN or connection URL`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "goclean.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().StringVarP(&strategy, "strategy", "s", "",
		"Override strategy (truncate, ordered-delete)")
	rootCmd.PersistentFlags().StringSliceVarP(&exclude, "exclude", "e", nil,
		"Table to keep (repeatable, merged with the config file)")
	rootCmd.PersistentFlags().BoolVar(&cacheTables, "cache-tables", false,
		"Reuse the row-count statement across passes")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel    string
	LogFormat   string
	Strategy    string
	Exclude     []string
	CacheTables bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Strategy:    strategy,
		Exclude:     exclude,
		CacheTables: cacheTables,
	}
}

// loadConfig reads the config file and layers environment and flag
// overrides on top, then validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	envOverrides, err := config.LoadEnvOverrides()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(envOverrides)

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.Strategy, o.Exclude, o.CacheTables)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cleanerOptions maps the cleaner section onto library options.
func cleanerOptions(cfg *config.Config) (cleaner.Options, error) {
	s, err := cleaner.ParseStrategy(cfg.Cleaner.Strategy)
	if err != nil {
		return cleaner.Options{}, err
	}
	return cleaner.Options{
		Strategy:            s,
		Exclude:             cfg.Cleaner.Exclude,
		Only:                cfg.Cleaner.Only,
		CacheTables:         cfg.Cleaner.CacheTables,
		FallbackToAllTables: cfg.Cleaner.FallbackToAllTables,
		MetricsNamespace:    cfg.Metrics.Namespace,
	}, nil
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
