// Package sqlutil provides identifier and literal quoting for the supported SQL dialects.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a MySQL identifier (table name, column name) with backticks.
// It escapes any existing backticks by doubling them.
// Example: "my_table" -> "`my_table`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuotePGIdentifier quotes a PostgreSQL identifier with double quotes,
// doubling any embedded double quote.
// Example: "Order" -> "\"Order\""
func QuotePGIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuotePGQualified quotes a schema-qualified PostgreSQL name. An empty
// schema yields the bare quoted name.
func QuotePGQualified(schema, name string) string {
	if schema == "" {
		return QuotePGIdentifier(name)
	}
	return QuotePGIdentifier(schema) + "." + QuotePGIdentifier(name)
}

var mysqlLiteralReplacer = strings.NewReplacer(`\`, `\\`, `'`, `''`)

// QuoteLiteral quotes a MySQL string literal. Backslashes are escaped as
// well as quotes since MySQL treats backslash as an escape character unless
// NO_BACKSLASH_ESCAPES is set.
func QuoteLiteral(value string) string {
	return "'" + mysqlLiteralReplacer.Replace(value) + "'"
}

// QuotePGLiteral quotes a PostgreSQL standard-conforming string literal.
func QuotePGLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// validIdentifierRegex matches the table names accepted from configuration.
// MySQL and PostgreSQL both allow more, but exclude/only lists are restricted
// to alphanumerics and underscore.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name only contains alphanumeric characters and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}
