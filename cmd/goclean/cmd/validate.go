package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goclean/internal/database"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and database capabilities",
	Long: `Validate checks the configuration file, connects to the database and
reports what the connection supports.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity
  - Capabilities required by the configured strategy
  - information_schema availability for selective cleaning

Example:
  goclean validate --config goclean.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cleanerOptions(cfg)
	if err != nil {
		return err
	}
	c, err := cleaner.New(opts, log)
	if err != nil {
		return fmt.Errorf("invalid cleaner options: %w", err)
	}

	log.Info("Starting validation checks...")

	ctx := context.Background()
	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	conn, err := dbManager.Connection()
	if err != nil {
		return err
	}

	fmt.Fprintf(outputWriter, "\n=== Configuration Validation ===\n")
	fmt.Fprintf(outputWriter, "Config file: %s\n", configFile)
	fmt.Fprintf(outputWriter, "Driver: %s\n", cfg.Database.Driver)
	fmt.Fprintf(outputWriter, "Strategy: %s\n", opts.Strategy)
	fmt.Fprintf(outputWriter, "Excluded tables: %d\n\n", len(opts.Exclude))

	caps := conn.Capabilities()
	introspection := c.Scanner().SchemaIntrospectionAvailable(ctx, conn)

	fmt.Fprintf(outputWriter, "--- Capabilities (%s) ---\n", caps.Dialect)
	printCheck("Disable referential integrity", caps.IntegrityDisable)
	printCheck("Foreign key introspection", caps.DependencyIntrospection)
	printCheck("Row-count introspection", introspection)
	fmt.Fprintln(outputWriter)

	if err := checkStrategy(opts, caps, introspection); err != nil {
		fmt.Fprintf(outputWriter, "❌ %v\n", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintln(outputWriter, "=== Validation Complete ===")
	fmt.Fprintln(outputWriter, "✅ Configuration is usable against this database")
	return nil
}

// checkStrategy reports whether a pass with opts can run on a connection
// with the given capabilities.
func checkStrategy(opts cleaner.Options, caps cleaner.Capabilities, introspection bool) error {
	switch opts.Strategy {
	case cleaner.OrderedDelete:
		if !caps.DependencyIntrospection {
			return &cleaner.UnsupportedError{Op: "ordered delete", Dialect: caps.Dialect}
		}
	default:
		if !caps.IntegrityDisable {
			return &cleaner.UnsupportedError{Op: "disable referential integrity", Dialect: caps.Dialect}
		}
		if !introspection && len(opts.Only) == 0 && !opts.FallbackToAllTables {
			return cleaner.ErrSchemaIntrospectionUnavailable
		}
	}
	return nil
}

func printCheck(name string, ok bool) {
	mark := "✅"
	if !ok {
		mark = "❌"
	}
	fmt.Fprintf(outputWriter, "%s %s\n", mark, name)
}
