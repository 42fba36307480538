package cleaner

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goclean/internal/logger"
)

func newTestCleaner(t *testing.T, opts Options) *Cleaner {
	t.Helper()
	c, err := New(opts, logger.NewNop())
	require.NoError(t, err)
	return c
}

func shopConn() *fakeConn {
	return newFakeConn("users", "orders", "order_items", "logs").
		withFK("orders", "users").
		withFK("order_items", "orders").
		withRows("users", 2).
		withRows("orders", 3).
		withRows("order_items", 0).
		withRows("logs", 5)
}

func TestNew_OnlyRequiresTruncate(t *testing.T) {
	_, err := New(Options{Strategy: OrderedDelete, Only: []string{"users"}}, logger.NewNop())
	assert.Error(t, err)
}

func TestClean_TruncateSkipsEmptyTables(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{Strategy: TruncateAllWithIntegrityDisabled})

	stats, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "orders", "logs"}, conn.deletes)
	assert.Equal(t, 3, stats.TablesDeleted)
	assert.Equal(t, 1, stats.TablesSkipped)
	assert.Equal(t, int64(10), stats.RowsDeleted)
	assert.Equal(t, int64(3), stats.RowsPerTable["orders"])
	assert.Equal(t, []string{"disable", "enable"}, conn.integrityLog)
	assert.False(t, conn.integrityOff)
}

func TestClean_SecondPassIsNoop(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{Strategy: TruncateAllWithIntegrityDisabled})
	ctx := context.Background()

	_, err := c.Clean(ctx, conn)
	require.NoError(t, err)
	conn.deletes = nil

	stats, err := c.Clean(ctx, conn)
	require.NoError(t, err)

	assert.Empty(t, conn.deletes)
	assert.Zero(t, stats.TablesDeleted)
	assert.Equal(t, 4, stats.TablesSkipped)
}

func TestClean_TruncateExclusions(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{Exclude: []string{"logs"}})

	_, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.NotContains(t, conn.deletes, "logs")
	assert.Equal(t, int64(5), conn.rows["logs"])
}

func TestClean_IntegrityRestoredAfterFailure(t *testing.T) {
	conn := shopConn()
	conn.deleteErr["orders"] = errBoom
	c := newTestCleaner(t, Options{})

	stats, err := c.Clean(context.Background(), conn)
	require.Error(t, err)
	assert.Nil(t, stats)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "app.orders", qe.Table)
	assert.True(t, errors.Is(err, errBoom))

	assert.Equal(t, []string{"disable", "enable"}, conn.integrityLog)
	assert.False(t, conn.integrityOff)
	assert.Equal(t, []string{"users"}, conn.deletes, "pass stops at the first failure")
}

func TestClean_StaleCacheRetriesOnce(t *testing.T) {
	conn := shopConn()
	conn.tables = append(conn.tables, "temp_import")
	c := newTestCleaner(t, Options{CacheTables: true})
	ctx := context.Background()

	_, err := c.Clean(ctx, conn)
	require.NoError(t, err)

	conn.dropTable("temp_import")
	conn.withRows("logs", 1)
	conn.deletes = nil

	stats, err := c.Clean(ctx, conn)
	require.NoError(t, err)

	assert.True(t, stats.Retried)
	assert.Equal(t, []string{"logs"}, conn.deletes)
	assert.Equal(t, 2, conn.listCalls, "table list rebuilt once after the stale statement")
	assert.Equal(t, 3, conn.integrityRuns, "first pass, cached attempt and one retry")
}

func TestClean_QueryFailureNotRetriedWithoutCache(t *testing.T) {
	conn := shopConn()
	conn.queryErr = errBoom
	c := newTestCleaner(t, Options{})

	_, err := c.Clean(context.Background(), conn)
	require.Error(t, err)

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.False(t, qe.Cached)
	assert.Equal(t, 1, conn.countQueries())
	assert.Empty(t, conn.deletes)
}

func TestClean_StaleCacheRetryFailure(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{CacheTables: true})
	ctx := context.Background()

	_, err := c.Clean(ctx, conn)
	require.NoError(t, err)

	conn.queryErr = errBoom
	_, err = c.Clean(ctx, conn)
	require.Error(t, err)

	assert.False(t, IsStaleCache(err), "the retry runs without the cache")
	assert.Equal(t, 3, conn.countQueries(), "first pass, cached attempt and exactly one retry")
}

func TestClean_OrderedDelete(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{Strategy: OrderedDelete})

	stats, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_items", "orders", "users", "logs"}, conn.deletes)
	assert.Equal(t, 4, stats.TablesDeleted)
	assert.Zero(t, conn.integrityRuns, "ordered delete keeps integrity checks on")
	for _, tbl := range conn.tables {
		assert.Zero(t, conn.rows[tbl], "table %s", tbl)
	}
}

func TestClean_OrderedDeleteParentChild(t *testing.T) {
	conn := newFakeConn("parent", "child").
		withFK("child", "parent").
		withRows("parent", 1).
		withRows("child", 1)
	c := newTestCleaner(t, Options{Strategy: OrderedDelete, Exclude: []string{"child"}})

	_, err := c.Clean(context.Background(), conn)
	require.Error(t, err, "parent is still referenced by the excluded child")
	assert.Empty(t, conn.deletes)

	conn.rows["child"] = 0
	_, err = c.Clean(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"parent"}, conn.deletes)
}

func TestClean_OrderedDeleteCycleWithDependents(t *testing.T) {
	conn := newFakeConn("accounts", "members", "order_items", "orders").
		withFK("accounts", "members").
		withFK("members", "accounts").
		withFK("orders", "accounts").
		withFK("order_items", "orders").
		withRows("accounts", 1).
		withRows("orders", 1).
		withRows("order_items", 2)
	c := newTestCleaner(t, Options{Strategy: OrderedDelete})

	stats, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TablesDeleted)
	assert.Less(t, position(conn.deletes, "order_items"), position(conn.deletes, "orders"))
	assert.Less(t, position(conn.deletes, "orders"), position(conn.deletes, "accounts"))
	for _, tbl := range conn.tables {
		assert.Zero(t, conn.rows[tbl], "table %s", tbl)
	}
}

func TestClean_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		mutate   func(*Capabilities)
	}{
		{"ordered delete without dependency introspection", OrderedDelete, func(c *Capabilities) { c.DependencyIntrospection = false }},
		{"truncate without integrity disable", TruncateAllWithIntegrityDisabled, func(c *Capabilities) { c.IntegrityDisable = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := shopConn()
			tt.mutate(&conn.caps)
			c := newTestCleaner(t, Options{Strategy: tt.strategy})

			_, err := c.Clean(context.Background(), conn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedOperation))
			assert.Empty(t, conn.deletes)
			assert.Zero(t, conn.integrityRuns)
		})
	}
}

func TestClean_FallbackToAllTables(t *testing.T) {
	conn := shopConn()
	conn.introspectionErr = errBoom
	c := newTestCleaner(t, Options{FallbackToAllTables: true, Exclude: []string{"logs"}})

	stats, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "orders", "order_items"}, conn.deletes)
	assert.Equal(t, 3, stats.TablesDeleted)
	assert.Zero(t, conn.countQueries())
}

func TestClean_SchemaIntrospectionUnavailable(t *testing.T) {
	conn := shopConn()
	conn.caps.SchemaIntrospection = false
	c := newTestCleaner(t, Options{FallbackToAllTables: false})

	_, err := c.Clean(context.Background(), conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaIntrospectionUnavailable))
	assert.Empty(t, conn.deletes)
	assert.Equal(t, []string{"disable", "enable"}, conn.integrityLog)
}

func TestClean_Only(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{Only: []string{"order_items", "orders", "logs"}, Exclude: []string{"logs"}})

	stats, err := c.Clean(context.Background(), conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_items", "orders"}, conn.deletes)
	assert.Equal(t, 2, stats.TablesDeleted)
	assert.Empty(t, conn.queries, "explicit tables need no row counts")
}

func TestClean_ContextCancelled(t *testing.T) {
	conn := shopConn()
	c := newTestCleaner(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Clean(ctx, conn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, conn.deletes)
	assert.False(t, conn.integrityOff)
}

func TestClean_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newTestCleaner(t, Options{Registerer: reg, MetricsNamespace: "test"})
	ctx := context.Background()

	_, err := c.Clean(ctx, shopConn())
	require.NoError(t, err)

	failing := shopConn()
	failing.deleteErr["users"] = errBoom
	_, err = c.Clean(ctx, failing)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.passes.WithLabelValues("truncate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.failures.WithLabelValues("truncate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.metrics.tablesDeleted.WithLabelValues("truncate")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.metrics.rowsDeleted.WithLabelValues("truncate")))

	count, err := testutil.GatherAndCount(reg, "test_passes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNew_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := newTestCleaner(t, Options{Registerer: reg})
	second := newTestCleaner(t, Options{Registerer: reg})

	_, err := second.Clean(context.Background(), shopConn())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(first.metrics.passes.WithLabelValues("truncate")))
}
