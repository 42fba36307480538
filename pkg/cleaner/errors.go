package cleaner

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned when a strategy needs a capability
	// the connection does not declare.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrSchemaIntrospectionUnavailable is returned by the truncate strategy
	// when row counts cannot be read and falling back to every table is
	// disabled.
	ErrSchemaIntrospectionUnavailable = errors.New("schema introspection unavailable")
)

// UnsupportedError names the operation and dialect that lacked a capability.
type UnsupportedError struct {
	Op      string
	Dialect string
}

func (e *UnsupportedError) Error() string {
	dialect := e.Dialect
	if dialect == "" {
		dialect = "unknown"
	}
	return fmt.Sprintf("%s: %s is not supported by %s connections", ErrUnsupportedOperation, e.Op, dialect)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupportedOperation
}

func unsupported(op string, caps Capabilities) error {
	return &UnsupportedError{Op: op, Dialect: caps.Dialect}
}

// QueryError is a failed statement issued by the cleaner. Cached is set
// when the statement text came from the scanner cache, which usually means
// a cached table no longer exists.
type QueryError struct {
	Op        string
	Table     string
	Statement string
	Cached    bool
	Err       error
}

func (e *QueryError) Error() string {
	msg := e.Op
	if e.Table != "" {
		msg += " " + e.Table
	}
	if e.Cached {
		msg += " (cached statement)"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsStaleCache reports whether err is a failure of a cached statement.
func IsStaleCache(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Cached
}
