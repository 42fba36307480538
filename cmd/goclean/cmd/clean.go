package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/goclean/internal/config"
	"github.com/dbsmedya/goclean/internal/database"
	"github.com/dbsmedya/goclean/internal/lock"
	"github.com/dbsmedya/goclean/internal/logger"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

var (
	cleanYes         bool
	cleanForce       bool
	cleanVerify      bool
	cleanMetricsFile string
	cleanLockTimeout int
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Empty every application table",
	Long: `Clean runs one pass against the configured database.

The truncate strategy disables referential checks for the session and
empties only the tables that hold rows. The ordered-delete strategy
empties every table in foreign-key order with checks on.

WARNING: This permanently deletes data. Run 'goclean plan' first.

Example:
  goclean clean --config goclean.yaml --yes
  goclean clean --strategy ordered-delete --exclude schema_migrations --yes`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false,
		"Confirm that every non-excluded table may be emptied (required)")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false,
		"Skip the advisory lock that serialises passes (use with caution)")
	cleanCmd.Flags().IntVar(&cleanLockTimeout, "lock-timeout", lock.TimeoutShort,
		"Seconds to wait for a running pass to finish (0 fails at once, -1 waits forever)")
	cleanCmd.Flags().BoolVar(&cleanVerify, "verify", false,
		"Count rows after the pass and fail if any table still holds rows")
	cleanCmd.Flags().StringVar(&cleanMetricsFile, "metrics-file", "",
		"Write pass metrics in Prometheus text format to this file (requires metrics.enabled)")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	if !cleanYes {
		return fmt.Errorf("refusing to delete data without --yes")
	}
	if cleanLockTimeout < lock.TimeoutInfinite {
		return fmt.Errorf("invalid --lock-timeout %d (want -1 or more)", cleanLockTimeout)
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cleanerOptions(cfg)
	if err != nil {
		return err
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		opts.Registerer = registry
	}

	c, err := cleaner.New(opts, log)
	if err != nil {
		return fmt.Errorf("failed to create cleaner: %w", err)
	}

	ctx, stop := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - stopping after the current table", "signal", sig.String())
	})
	defer stop()

	dbManager := database.NewManager(&cfg.Database)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbManager.Close()

	conn, err := dbManager.Connection()
	if err != nil {
		return err
	}

	log.Infow("Starting clean",
		"config", GetConfigFile(),
		"driver", cfg.Database.Driver,
		"database", cfg.Database.Database,
		"strategy", opts.Strategy.String(),
	)

	var stats *cleaner.Stats
	pass := func() error {
		stats, err = c.Clean(ctx, conn)
		return err
	}

	if cleanForce {
		log.Warnw("Skipping advisory lock acquisition (--force flag used)", "database", cfg.Database.Database)
		err = pass()
	} else {
		cleanLock := lock.NewCleanLock(conn, lockTarget(&cfg.Database))
		err = cleanLock.WithLock(ctx, cleanLockTimeout, func() error {
			log.Infow("Acquired advisory lock", "lock", cleanLock.LockName())
			return pass()
		})
		if errors.Is(err, lock.ErrLockTimeout) {
			return fmt.Errorf("another clean is already running against %q (use --force to override)", cfg.Database.Database)
		}
	}

	if registry != nil && cleanMetricsFile != "" {
		if werr := prometheus.WriteToTextfile(cleanMetricsFile, registry); werr != nil {
			log.Warnw("Failed to write metrics file", "path", cleanMetricsFile, "error", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	printCleanSummary(stats)

	if cleanVerify {
		return verifyPass(ctx, c, conn, log)
	}
	return nil
}

// lockTarget names the database a lock guards. A DSN-only config still
// gets a stable name.
func lockTarget(cfg *config.DatabaseConfig) string {
	if cfg.Database != "" {
		return cfg.Database
	}
	return cfg.Host
}

func verifyPass(ctx context.Context, c *cleaner.Cleaner, conn cleaner.Connection, log *logger.Logger) error {
	vs, err := c.Verify(ctx, conn)
	if errors.Is(err, cleaner.ErrUnsupportedOperation) {
		log.Warnw("Skipping verification", "error", err)
		return nil
	}
	if vs != nil {
		fmt.Fprintf(outputWriter, "Verified: %d tables, %d passed, %d failed\n",
			vs.TablesVerified, vs.TablesPassed, vs.TablesFailed)
	}
	return err
}

func printCleanSummary(stats *cleaner.Stats) {
	fmt.Fprintf(outputWriter, "\n=== Clean Complete ===\n")
	fmt.Fprintf(outputWriter, "Strategy: %s\n", stats.Strategy)
	fmt.Fprintf(outputWriter, "Duration: %s\n", stats.Duration)
	fmt.Fprintf(outputWriter, "Tables emptied: %d\n", stats.TablesDeleted)
	fmt.Fprintf(outputWriter, "Tables skipped (already empty): %d\n", stats.TablesSkipped)
	fmt.Fprintf(outputWriter, "Rows deleted: %d\n", stats.RowsDeleted)
	if stats.Retried {
		fmt.Fprintln(outputWriter, "Note: cached row-count statement was stale and rebuilt")
	}

	for _, name := range stats.Tables {
		fmt.Fprintf(outputWriter, "  %s: %d\n", name, stats.RowsPerTable[name])
	}
}
