package cleaner

import "context"

// Row is one result row keyed by column name.
type Row map[string]any

// Capabilities advertises what a Connection can do. The cleaner consults
// these flags instead of inspecting the concrete connection type.
type Capabilities struct {
	Dialect string

	// IntegrityDisable reports support for WithIntegrityDisabled.
	IntegrityDisable bool
	// DependencyIntrospection reports support for ForeignKeys.
	DependencyIntrospection bool
	// SchemaIntrospection reports an information_schema the scanner can
	// query for row counts.
	SchemaIntrospection bool
}

// Connection is the database surface the cleaner needs. A Connection must
// run every call on the same underlying session so that settings made by
// WithIntegrityDisabled apply to the deletes issued inside it.
type Connection interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, statement string) (int64, error)
	// Query runs a statement and returns all rows.
	Query(ctx context.Context, statement string) ([]Row, error)

	QuoteIdentifier(name string) string
	QuoteLiteral(value string) string

	// ListTables returns the base tables of schema in a stable order.
	ListTables(ctx context.Context, schema string) ([]Table, error)
	// ForeignKeys returns the foreign keys among the tables of schema.
	ForeignKeys(ctx context.Context, schema string) ([]ForeignKey, error)

	// WithIntegrityDisabled runs fn with referential checks switched off for
	// this session. Checks are restored before it returns, whether fn
	// succeeds, fails or panics.
	WithIntegrityDisabled(ctx context.Context, fn func(ctx context.Context) error) error

	// DeleteAllRows removes every row of table and returns the count removed.
	DeleteAllRows(ctx context.Context, table Table) (int64, error)

	CurrentSchema(ctx context.Context) (string, error)
	Capabilities() Capabilities
}
