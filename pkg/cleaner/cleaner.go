package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dbsmedya/goclean/internal/logger"
)

// Options configures a Cleaner.
type Options struct {
	Strategy Strategy

	// Exclude lists tables that are never emptied.
	Exclude []string
	// Only restricts the truncate strategy to these tables, regardless of
	// whether they hold rows.
	Only []string

	// CacheTables reuses the row-count statement across passes. Tables
	// created or dropped between passes are missed until Invalidate.
	CacheTables bool

	// FallbackToAllTables empties every listed table when row counts cannot
	// be read. When false the pass fails with
	// ErrSchemaIntrospectionUnavailable.
	FallbackToAllTables bool

	MetricsNamespace string
	// Registerer exports pass metrics. Nil keeps them unexported.
	Registerer prometheus.Registerer
}

// Stats describes one cleaning pass.
type Stats struct {
	Strategy      Strategy
	TablesDeleted int
	TablesSkipped int
	RowsDeleted   int64
	// Tables lists the emptied tables in deletion order.
	Tables       []string
	RowsPerTable map[string]int64
	Duration     time.Duration
	// Retried is set when a stale cached statement forced a second attempt.
	Retried bool
}

func newStats(s Strategy) *Stats {
	return &Stats{Strategy: s, RowsPerTable: make(map[string]int64)}
}

func (s *Stats) record(table string, rows int64) {
	s.TablesDeleted++
	s.RowsDeleted += rows
	s.Tables = append(s.Tables, table)
	s.RowsPerTable[table] = rows
}

// Cleaner empties database tables. One Cleaner serves one connection; its
// scanner cache and introspection result describe that connection only.
type Cleaner struct {
	opts       Options
	exclusions ExclusionSet
	resolver   *Resolver
	scanner    *Scanner
	metrics    *metrics
	logger     *logger.Logger
}

// New creates a Cleaner.
func New(opts Options, log *logger.Logger) (*Cleaner, error) {
	if log == nil {
		log = logger.NewDefault()
	}
	if opts.Strategy == OrderedDelete && len(opts.Only) > 0 {
		return nil, fmt.Errorf("only list requires the %s strategy", TruncateAllWithIntegrityDisabled)
	}

	m, err := newMetrics(opts.MetricsNamespace, opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	exclusions := NewExclusionSet(opts.Exclude...)
	return &Cleaner{
		opts:       opts,
		exclusions: exclusions,
		resolver:   NewResolver(exclusions, log),
		scanner:    NewScanner(exclusions, opts.CacheTables, log),
		metrics:    m,
		logger:     log,
	}, nil
}

// Strategy returns the configured strategy.
func (c *Cleaner) Strategy() Strategy {
	return c.opts.Strategy
}

// Resolver returns the cleaner's dependency resolver.
func (c *Cleaner) Resolver() *Resolver {
	return c.resolver
}

// Scanner returns the cleaner's row-count scanner.
func (c *Cleaner) Scanner() *Scanner {
	return c.scanner
}

// Clean runs one pass. It stops at the first failing table; tables emptied
// before the failure stay empty.
func (c *Cleaner) Clean(ctx context.Context, conn Connection) (*Stats, error) {
	start := time.Now()
	caps := conn.Capabilities()
	log := c.logger.WithStrategy(c.opts.Strategy.String()).WithDialect(caps.Dialect)

	log.Info("Starting cleaning pass")

	var (
		stats *Stats
		err   error
	)
	switch c.opts.Strategy {
	case OrderedDelete:
		stats = newStats(OrderedDelete)
		err = c.orderedDelete(ctx, conn, stats, log)
	default:
		stats, err = c.truncateAll(ctx, conn, log)
	}

	stats.Duration = time.Since(start)
	c.metrics.observe(stats, err)

	if err != nil {
		log.Errorw("Cleaning pass failed", "error", err, "tables_deleted", stats.TablesDeleted)
		return nil, err
	}

	log.Infof("Cleaning pass complete: %d tables emptied, %d skipped, %d rows deleted, duration: %s",
		stats.TablesDeleted, stats.TablesSkipped, stats.RowsDeleted, stats.Duration)
	return stats, nil
}

func (c *Cleaner) orderedDelete(ctx context.Context, conn Connection, stats *Stats, log *logger.Logger) error {
	caps := conn.Capabilities()
	if !caps.DependencyIntrospection {
		return unsupported("ordered delete", caps)
	}

	order, err := c.resolver.ResolveOrder(ctx, conn)
	if err != nil {
		return fmt.Errorf("resolve deletion order: %w", err)
	}

	return c.deleteTables(ctx, conn, order, stats, log)
}

func (c *Cleaner) truncateAll(ctx context.Context, conn Connection, log *logger.Logger) (*Stats, error) {
	caps := conn.Capabilities()
	stats := newStats(TruncateAllWithIntegrityDisabled)
	if !caps.IntegrityDisable {
		return stats, unsupported("disable referential integrity", caps)
	}

	err := conn.WithIntegrityDisabled(ctx, func(ctx context.Context) error {
		return c.truncatePass(ctx, conn, stats, log)
	})
	if err == nil || !IsStaleCache(err) {
		return stats, err
	}

	log.Warnw("Cached row-count statement failed, retrying with a fresh table list", "error", err)
	c.scanner.Invalidate()
	c.metrics.staleCacheRetry()

	stats = newStats(TruncateAllWithIntegrityDisabled)
	stats.Retried = true
	err = conn.WithIntegrityDisabled(ctx, func(ctx context.Context) error {
		return c.truncatePass(ctx, conn, stats, log)
	})
	return stats, err
}

func (c *Cleaner) truncatePass(ctx context.Context, conn Connection, stats *Stats, log *logger.Logger) error {
	targets, skipped, err := c.truncateTargets(ctx, conn, log)
	if err != nil {
		return err
	}
	stats.TablesSkipped = skipped
	return c.deleteTables(ctx, conn, targets, stats, log)
}

// truncateTargets picks the tables a truncate pass empties and reports how
// many listed tables were skipped as empty.
func (c *Cleaner) truncateTargets(ctx context.Context, conn Connection, log *logger.Logger) ([]Table, int, error) {
	if len(c.opts.Only) > 0 {
		schema, err := conn.CurrentSchema(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("read current schema: %w", err)
		}
		only := make([]Table, len(c.opts.Only))
		for i, name := range c.opts.Only {
			only[i] = Table{Schema: schema, Name: name}
		}
		return c.exclusions.Apply(only), 0, nil
	}

	if c.scanner.SchemaIntrospectionAvailable(ctx, conn) {
		tables, stats, err := c.scanner.scan(ctx, conn)
		if err != nil {
			return nil, 0, err
		}
		filled := filledTables(tables, stats)
		return filled, len(tables) - len(filled), nil
	}

	if !c.opts.FallbackToAllTables {
		return nil, 0, ErrSchemaIntrospectionUnavailable
	}

	log.Warn("Row counts unavailable, emptying every table")
	schema, err := conn.CurrentSchema(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read current schema: %w", err)
	}
	tables, err := conn.ListTables(ctx, schema)
	if err != nil {
		return nil, 0, fmt.Errorf("list tables: %w", err)
	}
	return c.exclusions.Apply(tables), 0, nil
}

func (c *Cleaner) deleteTables(ctx context.Context, conn Connection, tables []Table, stats *Stats, log *logger.Logger) error {
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("clean interrupted: %w", err)
		}

		rows, err := conn.DeleteAllRows(ctx, t)
		if err != nil {
			return &QueryError{Op: "delete from", Table: t.QualifiedName(), Err: err}
		}

		stats.record(t.Name, rows)
		log.WithTable(t.Name).Debugf("Deleted %d rows", rows)
	}
	return nil
}
