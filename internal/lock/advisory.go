// Package lock serialises cleaning passes against the same database with
// server-side advisory locks.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbsmedya/goclean/internal/types"
	"github.com/dbsmedya/goclean/pkg/cleaner"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if lock cannot be acquired.
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate pass detection.
	TimeoutShort = 1

	// TimeoutInfinite waits until the lock is acquired or ctx is done.
	TimeoutInfinite = -1
)

// pollInterval paces PostgreSQL acquisition, which has no server-side wait
// for a named lock.
var pollInterval = 100 * time.Millisecond

// AdvisoryLock is a named session lock. MySQL uses GET_LOCK; PostgreSQL uses
// pg_try_advisory_lock on hashtext(name). Both are released when the
// session ends.
type AdvisoryLock struct {
	conn     cleaner.Connection
	lockName string
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name.
// The lock is not acquired until AcquireLock is called.
func NewAdvisoryLock(conn cleaner.Connection, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		conn:     conn,
		lockName: lockName,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// Returns true if the lock was acquired, false if timeout was reached.
//
// MySQL GET_LOCK() return values:
//   - 1: Lock was obtained successfully
//   - 0: Timeout was reached without obtaining the lock
//   - NULL: An error occurred (e.g., out of memory, thread killed)
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}
	if a.conn == nil {
		return false, fmt.Errorf("connection is nil")
	}

	caps := a.conn.Capabilities()
	switch caps.Dialect {
	case "mysql":
		return a.acquireMySQL(ctx, timeoutSeconds)
	case "postgres":
		return a.acquirePostgres(ctx, timeoutSeconds)
	default:
		return false, &cleaner.UnsupportedError{Op: "advisory lock", Dialect: caps.Dialect}
	}
}

func (a *AdvisoryLock) acquireMySQL(ctx context.Context, timeoutSeconds int) (bool, error) {
	query := fmt.Sprintf("SELECT GET_LOCK(%s, %d) AS acquired", a.conn.QuoteLiteral(a.lockName), timeoutSeconds)

	result, valid, err := a.queryFlag(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}
	if !valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	a.held = result
	return result, nil
}

func (a *AdvisoryLock) acquirePostgres(ctx context.Context, timeoutSeconds int) (bool, error) {
	query := fmt.Sprintf("SELECT pg_try_advisory_lock(hashtext(%s)) AS acquired", a.conn.QuoteLiteral(a.lockName))

	var deadline time.Time
	if timeoutSeconds > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	}

	for {
		result, _, err := a.queryFlag(ctx, query)
		if err != nil {
			return false, fmt.Errorf("failed to execute pg_try_advisory_lock: %w", err)
		}
		if result {
			a.held = true
			return true, nil
		}

		if timeoutSeconds == TimeoutImmediate || (!deadline.IsZero() && time.Now().After(deadline)) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ReleaseLock releases the lock. Returns true if it was released, false if
// this session did not hold it.
//
// MySQL RELEASE_LOCK() return values:
//   - 1: Lock was released successfully
//   - 0: Lock was not established by this thread (not held)
//   - NULL: Named lock did not exist
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var query, fn string
	switch a.conn.Capabilities().Dialect {
	case "postgres":
		fn = "pg_advisory_unlock"
		query = fmt.Sprintf("SELECT pg_advisory_unlock(hashtext(%s)) AS released", a.conn.QuoteLiteral(a.lockName))
	default:
		fn = "RELEASE_LOCK"
		query = fmt.Sprintf("SELECT RELEASE_LOCK(%s) AS released", a.conn.QuoteLiteral(a.lockName))
	}

	result, valid, err := a.queryFlag(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to execute %s: %w", fn, err)
	}

	a.held = false
	if !valid {
		return false, fmt.Errorf("%s returned NULL for lock %q (lock did not exist)", fn, a.lockName)
	}
	return result, nil
}

// queryFlag runs a single-value lock statement. MySQL answers 1/0/NULL,
// PostgreSQL answers a boolean.
func (a *AdvisoryLock) queryFlag(ctx context.Context, query string) (result bool, valid bool, err error) {
	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return false, false, err
	}
	if len(rows) != 1 {
		return false, false, fmt.Errorf("expected one row, got %d", len(rows))
	}

	var v any
	for _, col := range rows[0] {
		v = col
	}

	switch x := v.(type) {
	case nil:
		return false, false, nil
	case bool:
		return x, true, nil
	default:
		n := types.ToInt64(x)
		if n != 0 && n != 1 {
			return false, true, fmt.Errorf("unexpected lock function result: %d", n)
		}
		return n == 1, true, nil
	}
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// AcquireOrFail acquires the lock, waiting up to timeoutSeconds, and returns
// ErrLockTimeout if another instance still holds it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context, timeoutSeconds int) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateCleanLockName returns the lock name guarding passes against one
// database: "goclean:clean:{database}".
func GenerateCleanLockName(database string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, database)

	return fmt.Sprintf("goclean:clean:%s", sanitized)
}

// NewCleanLock creates the advisory lock guarding passes against database.
func NewCleanLock(conn cleaner.Connection, database string) *AdvisoryLock {
	return NewAdvisoryLock(conn, GenerateCleanLockName(database))
}

// WithLock runs fn while holding the lock. The lock is released on every
// exit path, including a panic in fn.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	if err := a.AcquireOrFail(ctx, timeoutSeconds); err != nil {
		return err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		// The session releases the lock when it closes if this fails.
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}
