package dialect

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dbsmedya/goclean/internal/sqlutil"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

// DBTX is satisfied by *pgx.Conn, *pgxpool.Conn and pgx.Tx. A *pgxpool.Pool
// also satisfies it but spreads calls over sessions, which breaks
// WithIntegrityDisabled.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const (
	pgListTablesQuery = "SELECT table_name FROM information_schema.tables " +
		"WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name"

	pgForeignKeysQuery = `SELECT c.relname AS table_name, r.relname AS referenced_table_name, con.conname AS constraint_name
FROM pg_constraint con
JOIN pg_class c ON c.oid = con.conrelid
JOIN pg_namespace cn ON cn.oid = c.relnamespace
JOIN pg_class r ON r.oid = con.confrelid
JOIN pg_namespace rn ON rn.oid = r.relnamespace
WHERE con.contype = 'f' AND cn.nspname = $1 AND rn.nspname = $1
ORDER BY c.relname, con.conname`

	// Replica role skips FK triggers. It needs superuser, which hosted
	// offerings such as Azure withhold; use ordered-delete there.
	pgDisableChecks = "SET session_replication_role = replica"
	pgEnableChecks  = "SET session_replication_role = DEFAULT"
)

// Postgres is a cleaner.Connection over pgx.
type Postgres struct {
	db DBTX
}

var _ cleaner.Connection = (*Postgres)(nil)

// NewPostgres wraps a pgx session.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Exec(ctx context.Context, statement string) (int64, error) {
	tag, err := p.db.Exec(ctx, statement)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Query(ctx context.Context, statement string) ([]cleaner.Row, error) {
	rows, err := p.db.Query(ctx, statement)
	if err != nil {
		return nil, err
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	out := make([]cleaner.Row, len(maps))
	for i, m := range maps {
		out[i] = cleaner.Row(m)
	}
	return out, nil
}

func (p *Postgres) QuoteIdentifier(name string) string {
	return sqlutil.QuotePGIdentifier(name)
}

func (p *Postgres) QuoteLiteral(value string) string {
	return sqlutil.QuotePGLiteral(value)
}

// ListTables returns the base tables of schema ordered by name.
func (p *Postgres) ListTables(ctx context.Context, schema string) ([]cleaner.Table, error) {
	rows, err := p.db.Query(ctx, pgListTablesQuery, schema)
	if err != nil {
		return nil, err
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect table names: %w", err)
	}

	tables := make([]cleaner.Table, len(names))
	for i, n := range names {
		tables[i] = cleaner.Table{Schema: schema, Name: n}
	}
	return tables, nil
}

type pgForeignKey struct {
	Table           string `db:"table_name"`
	ReferencedTable string `db:"referenced_table_name"`
	Constraint      string `db:"constraint_name"`
}

// ForeignKeys reads foreign keys from pg_constraint. Keys pointing into
// another schema are left out.
func (p *Postgres) ForeignKeys(ctx context.Context, schema string) ([]cleaner.ForeignKey, error) {
	rows, err := p.db.Query(ctx, pgForeignKeysQuery, schema)
	if err != nil {
		return nil, err
	}

	found, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgForeignKey])
	if err != nil {
		return nil, fmt.Errorf("collect foreign keys: %w", err)
	}

	fks := make([]cleaner.ForeignKey, len(found))
	for i, fk := range found {
		fks[i] = cleaner.ForeignKey(fk)
	}
	return fks, nil
}

// WithIntegrityDisabled switches the session to replica role while fn runs.
func (p *Postgres) WithIntegrityDisabled(ctx context.Context, fn func(ctx context.Context) error) error {
	return withSessionSetting(ctx, p.Exec, pgDisableChecks, pgEnableChecks, fn)
}

func (p *Postgres) DeleteAllRows(ctx context.Context, table cleaner.Table) (int64, error) {
	return p.Exec(ctx, "DELETE FROM "+sqlutil.QuotePGQualified(table.Schema, table.Name))
}

// CurrentSchema returns the first schema on the search path.
func (p *Postgres) CurrentSchema(ctx context.Context) (string, error) {
	var schema *string
	if err := p.db.QueryRow(ctx, "SELECT current_schema()").Scan(&schema); err != nil {
		return "", err
	}
	if schema == nil || *schema == "" {
		return "", errors.New("search_path resolves to no schema")
	}
	return *schema, nil
}

func (p *Postgres) Capabilities() cleaner.Capabilities {
	return cleaner.Capabilities{
		Dialect:                 NamePostgres,
		IntegrityDisable:        true,
		DependencyIntrospection: true,
		SchemaIntrospection:     true,
	}
}
