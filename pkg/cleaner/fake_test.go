package cleaner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// fakeConn is an in-memory Connection. With integrity checks on, it refuses
// to empty a table that another non-empty table references.
type fakeConn struct {
	schema string
	tables []string
	rows   map[string]int64
	fks    []ForeignKey
	caps   Capabilities

	introspectionErr error
	queryErr         error
	deleteErr        map[string]error

	integrityOff bool

	queries       []string
	deletes       []string
	integrityLog  []string
	listCalls     int
	fkCalls       int
	schemaCalls   int
	integrityRuns int
}

func newFakeConn(tables ...string) *fakeConn {
	f := &fakeConn{
		schema:    "app",
		rows:      make(map[string]int64),
		deleteErr: make(map[string]error),
		caps: Capabilities{
			Dialect:                 "fake",
			IntegrityDisable:        true,
			DependencyIntrospection: true,
			SchemaIntrospection:     true,
		},
	}
	f.tables = append(f.tables, tables...)
	return f
}

func (f *fakeConn) withRows(table string, n int64) *fakeConn {
	f.rows[table] = n
	return f
}

func (f *fakeConn) withFK(table, referenced string) *fakeConn {
	f.fks = append(f.fks, ForeignKey{Table: table, ReferencedTable: referenced, Constraint: "fk_" + table + "_" + referenced})
	return f
}

func (f *fakeConn) dropTable(name string) {
	kept := f.tables[:0]
	for _, t := range f.tables {
		if t != name {
			kept = append(kept, t)
		}
	}
	f.tables = kept
	delete(f.rows, name)
}

func (f *fakeConn) hasTable(name string) bool {
	for _, t := range f.tables {
		if t == name {
			return true
		}
	}
	return false
}

func (f *fakeConn) countQueries() int {
	n := 0
	for _, q := range f.queries {
		if q != introspectionStatement {
			n++
		}
	}
	return n
}

func (f *fakeConn) Exec(_ context.Context, statement string) (int64, error) {
	return 0, fmt.Errorf("unexpected exec: %s", statement)
}

func (f *fakeConn) Query(_ context.Context, statement string) ([]Row, error) {
	f.queries = append(f.queries, statement)

	if statement == introspectionStatement {
		if f.introspectionErr != nil {
			return nil, f.introspectionErr
		}
		return []Row{{"1": int64(1)}}, nil
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var rows []Row
	for _, part := range strings.Split(statement, " UNION ALL ") {
		idx := strings.LastIndex(part, " FROM ")
		if idx < 0 {
			return nil, fmt.Errorf("unexpected statement: %s", statement)
		}
		name := strings.Trim(part[idx+len(" FROM "):], `"`)
		if !f.hasTable(name) {
			return nil, fmt.Errorf("relation %q does not exist", name)
		}
		rows = append(rows, Row{columnTableName: name, columnRowCount: f.rows[name]})
	}
	return rows, nil
}

func (f *fakeConn) QuoteIdentifier(name string) string { return `"` + name + `"` }
func (f *fakeConn) QuoteLiteral(value string) string   { return "'" + value + "'" }

func (f *fakeConn) ListTables(_ context.Context, schema string) ([]Table, error) {
	f.listCalls++
	out := make([]Table, len(f.tables))
	for i, t := range f.tables {
		out[i] = Table{Schema: schema, Name: t}
	}
	return out, nil
}

func (f *fakeConn) ForeignKeys(_ context.Context, _ string) ([]ForeignKey, error) {
	f.fkCalls++
	return f.fks, nil
}

func (f *fakeConn) WithIntegrityDisabled(ctx context.Context, fn func(ctx context.Context) error) error {
	f.integrityRuns++
	f.integrityOff = true
	f.integrityLog = append(f.integrityLog, "disable")
	defer func() {
		f.integrityOff = false
		f.integrityLog = append(f.integrityLog, "enable")
	}()
	return fn(ctx)
}

func (f *fakeConn) DeleteAllRows(_ context.Context, table Table) (int64, error) {
	if err := f.deleteErr[table.Name]; err != nil {
		return 0, err
	}
	if !f.integrityOff && f.rows[table.Name] > 0 {
		for _, fk := range f.fks {
			if fk.ReferencedTable == table.Name && fk.Table != table.Name && f.rows[fk.Table] > 0 {
				return 0, fmt.Errorf("cannot delete from %s: referenced by %s", table.Name, fk.Table)
			}
		}
	}
	f.deletes = append(f.deletes, table.Name)
	n := f.rows[table.Name]
	f.rows[table.Name] = 0
	return n, nil
}

func (f *fakeConn) CurrentSchema(_ context.Context) (string, error) {
	f.schemaCalls++
	return f.schema, nil
}

func (f *fakeConn) Capabilities() Capabilities { return f.caps }

var errBoom = errors.New("boom")
