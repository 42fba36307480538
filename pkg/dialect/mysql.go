// Package dialect implements cleaner.Connection for MySQL and PostgreSQL.
package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dbsmedya/goclean/internal/sqlutil"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

// Dialect names reported through cleaner.Capabilities.
const (
	NameMySQL    = "mysql"
	NamePostgres = "postgres"
)

// execQuerier is satisfied by *sql.Conn, *sql.DB and *sql.Tx. Only *sql.Conn
// pins a single session, which WithIntegrityDisabled relies on.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	mysqlListTablesQuery = "SELECT TABLE_NAME FROM information_schema.tables " +
		"WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	mysqlForeignKeysQuery = "SELECT TABLE_NAME, REFERENCED_TABLE_NAME, CONSTRAINT_NAME " +
		"FROM information_schema.referential_constraints " +
		"WHERE CONSTRAINT_SCHEMA = ? AND UNIQUE_CONSTRAINT_SCHEMA = ? " +
		"ORDER BY TABLE_NAME, CONSTRAINT_NAME"

	mysqlDisableChecks = "SET FOREIGN_KEY_CHECKS = 0"
	mysqlEnableChecks  = "SET FOREIGN_KEY_CHECKS = 1"
)

// MySQL is a cleaner.Connection over database/sql with go-sql-driver/mysql.
type MySQL struct {
	db execQuerier
}

var _ cleaner.Connection = (*MySQL)(nil)

// NewMySQL wraps a database/sql session.
func NewMySQL(db execQuerier) *MySQL {
	return &MySQL{db: db}
}

// Exec runs statement and returns the affected row count.
func (m *MySQL) Exec(ctx context.Context, statement string) (int64, error) {
	res, err := m.db.ExecContext(ctx, statement)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Query runs statement and returns every row. Text columns arrive as []byte.
func (m *MySQL) Query(ctx context.Context, statement string) ([]cleaner.Row, error) {
	rows, err := m.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []cleaner.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(cleaner.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (m *MySQL) QuoteIdentifier(name string) string {
	return sqlutil.QuoteIdentifier(name)
}

func (m *MySQL) QuoteLiteral(value string) string {
	return sqlutil.QuoteLiteral(value)
}

// ListTables returns the base tables of schema ordered by name.
func (m *MySQL) ListTables(ctx context.Context, schema string) ([]cleaner.Table, error) {
	rows, err := m.db.QueryContext(ctx, mysqlListTablesQuery, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []cleaner.Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, cleaner.Table{Schema: schema, Name: name})
	}
	return tables, rows.Err()
}

// ForeignKeys returns the foreign keys between tables of schema.
func (m *MySQL) ForeignKeys(ctx context.Context, schema string) ([]cleaner.ForeignKey, error) {
	rows, err := m.db.QueryContext(ctx, mysqlForeignKeysQuery, schema, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []cleaner.ForeignKey
	for rows.Next() {
		var fk cleaner.ForeignKey
		if err := rows.Scan(&fk.Table, &fk.ReferencedTable, &fk.Constraint); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// WithIntegrityDisabled turns FOREIGN_KEY_CHECKS off for the session while
// fn runs.
func (m *MySQL) WithIntegrityDisabled(ctx context.Context, fn func(ctx context.Context) error) error {
	return withSessionSetting(ctx, m.Exec, mysqlDisableChecks, mysqlEnableChecks, fn)
}

// DeleteAllRows empties table with DELETE so that it also works with checks on.
func (m *MySQL) DeleteAllRows(ctx context.Context, table cleaner.Table) (int64, error) {
	name := sqlutil.QuoteIdentifier(table.Name)
	if table.Schema != "" {
		name = sqlutil.QuoteIdentifier(table.Schema) + "." + name
	}
	return m.Exec(ctx, "DELETE FROM "+name)
}

// CurrentSchema returns the database selected by the DSN.
func (m *MySQL) CurrentSchema(ctx context.Context) (string, error) {
	var schema sql.NullString
	if err := m.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schema); err != nil {
		return "", err
	}
	if !schema.Valid || schema.String == "" {
		return "", errors.New("no database selected")
	}
	return schema.String, nil
}

func (m *MySQL) Capabilities() cleaner.Capabilities {
	return cleaner.Capabilities{
		Dialect:                 NameMySQL,
		IntegrityDisable:        true,
		DependencyIntrospection: true,
		SchemaIntrospection:     true,
	}
}

// withSessionSetting runs disable, then fn, then enable. Enable runs on
// every exit path, including a panic in fn or a cancelled ctx.
func withSessionSetting(ctx context.Context, exec func(context.Context, string) (int64, error), disable, enable string, fn func(context.Context) error) (err error) {
	if _, err := exec(ctx, disable); err != nil {
		return fmt.Errorf("disable referential integrity: %w", err)
	}

	defer func() {
		if _, rerr := exec(context.WithoutCancel(ctx), enable); rerr != nil {
			rerr = fmt.Errorf("restore referential integrity: %w", rerr)
			if err == nil {
				err = rerr
			} else {
				err = errors.Join(err, rerr)
			}
		}
	}()

	return fn(ctx)
}
