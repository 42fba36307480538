package cleaner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dbsmedya/goclean/internal/logger"
	"github.com/dbsmedya/goclean/internal/types"
)

const (
	introspectionStatement = "SELECT 1 FROM information_schema.tables LIMIT 1"

	columnTableName = "table_name"
	columnRowCount  = "exact_row_count"
)

// Scanner finds the tables that currently hold rows so that a pass can skip
// the empty ones.
type Scanner struct {
	exclusions ExclusionSet
	cache      bool
	log        *logger.Logger

	mu        sync.Mutex
	checked   bool
	available bool

	cachedQuery  string
	cachedTables []Table
}

// NewScanner creates a scanner. With cache enabled the row-count statement
// is built once and reused until Invalidate is called.
func NewScanner(exclusions ExclusionSet, cache bool, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scanner{exclusions: exclusions, cache: cache, log: log}
}

// SchemaIntrospectionAvailable reports whether information_schema can be
// queried on conn. The first answer is remembered. It never fails: any
// check error counts as unavailable.
func (s *Scanner) SchemaIntrospectionAvailable(ctx context.Context, conn Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checked {
		return s.available
	}

	if !conn.Capabilities().SchemaIntrospection {
		s.checked, s.available = true, false
		return false
	}

	_, err := conn.Query(ctx, introspectionStatement)
	if err != nil {
		if ctx.Err() != nil {
			// A cancelled check says nothing about the database.
			return false
		}
		s.log.Debugw("schema introspection check failed", "error", err)
	}
	s.checked, s.available = true, err == nil
	return s.available
}

// TablesWithRows returns the non-excluded tables holding at least one row,
// in listing order. All counts are read by a single statement.
func (s *Scanner) TablesWithRows(ctx context.Context, conn Connection) ([]Table, error) {
	tables, stats, err := s.scan(ctx, conn)
	if err != nil {
		return nil, err
	}
	return filledTables(tables, stats), nil
}

func filledTables(tables []Table, stats []TableStats) []Table {
	counts := make(map[string]int64, len(stats))
	for _, st := range stats {
		counts[st.Table] = st.ExactRowCount
	}

	var filled []Table
	for _, t := range tables {
		if counts[t.Name] > 0 {
			filled = append(filled, t)
		}
	}
	return filled
}

// TableStats returns the exact row count of every non-excluded table.
func (s *Scanner) TableStats(ctx context.Context, conn Connection) ([]TableStats, error) {
	_, stats, err := s.scan(ctx, conn)
	return stats, err
}

// Invalidate drops the cached statement. The next scan lists tables again.
func (s *Scanner) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedQuery = ""
	s.cachedTables = nil
}

func (s *Scanner) scan(ctx context.Context, conn Connection) ([]Table, []TableStats, error) {
	tables, stmt, cached, err := s.statement(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	if stmt == "" {
		return nil, nil, nil
	}

	rows, err := conn.Query(ctx, stmt)
	if err != nil {
		return nil, nil, &QueryError{Op: "count rows", Statement: stmt, Cached: cached, Err: err}
	}

	stats := make([]TableStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, TableStats{
			Table:         types.ToString(row[columnTableName]),
			ExactRowCount: types.ToInt64(row[columnRowCount]),
		})
	}
	return tables, stats, nil
}

// statement returns the tables to count and the statement counting them.
// An empty statement means there is nothing to count.
func (s *Scanner) statement(ctx context.Context, conn Connection) ([]Table, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache && s.cachedQuery != "" {
		return s.cachedTables, s.cachedQuery, true, nil
	}

	schema, err := conn.CurrentSchema(ctx)
	if err != nil {
		return nil, "", false, fmt.Errorf("read current schema: %w", err)
	}
	listed, err := conn.ListTables(ctx, schema)
	if err != nil {
		return nil, "", false, fmt.Errorf("list tables: %w", err)
	}

	tables := s.exclusions.Apply(listed)
	if len(tables) == 0 {
		return nil, "", false, nil
	}

	stmt := BuildRowCountQuery(conn, tables)
	if s.cache {
		s.cachedQuery = stmt
		s.cachedTables = tables
	}
	return tables, stmt, false, nil
}

// BuildRowCountQuery returns one statement yielding a table_name and
// exact_row_count row per table.
func BuildRowCountQuery(q interface {
	QuoteIdentifier(string) string
	QuoteLiteral(string) string
}, tables []Table) string {
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = fmt.Sprintf("SELECT %s AS %s, COUNT(*) AS %s FROM %s",
			q.QuoteLiteral(t.Name), columnTableName, columnRowCount, q.QuoteIdentifier(t.Name))
	}
	return strings.Join(parts, " UNION ALL ")
}
