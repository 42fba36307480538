// Package database opens the dedicated session a cleaner runs on.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/goclean/internal/config"
	"github.com/dbsmedya/goclean/internal/sqlutil"
	"github.com/dbsmedya/goclean/pkg/cleaner"
	"github.com/dbsmedya/goclean/pkg/dialect"
)

// Manager owns the connection pool and the single session handed to the
// cleaner. Integrity settings are per session, so every statement of a pass
// must go through the same one.
type Manager struct {
	config *config.DatabaseConfig

	db      *sql.DB
	sqlConn *sql.Conn

	pool   *pgxpool.Pool
	pgConn *pgxpool.Conn

	maxRetries int
	backoff    time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.DatabaseConfig) *Manager {
	return &Manager{
		config:     cfg,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Connect opens the pool and pins one session, retrying with exponential
// backoff.
func (m *Manager) Connect(ctx context.Context) error {
	if m.config == nil {
		return fmt.Errorf("database configuration is nil")
	}

	var err error
	backoff := m.backoff
	for i := 0; i < m.maxRetries; i++ {
		if err = m.connect(ctx); err == nil {
			return nil
		}
		m.closeAll()

		if i < m.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return fmt.Errorf("failed to connect to %s database after %d retries: %w", m.config.Driver, m.maxRetries, err)
}

func (m *Manager) connect(ctx context.Context) error {
	switch m.config.Driver {
	case config.DriverPostgres:
		return m.connectPostgres(ctx)
	case config.DriverMySQL, "":
		return m.connectMySQL(ctx)
	default:
		return fmt.Errorf("unsupported driver %q", m.config.Driver)
	}
}

func (m *Manager) connectMySQL(ctx context.Context) error {
	db, err := sql.Open("mysql", BuildDSN(m.config))
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)
	m.db = db

	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	m.sqlConn = conn
	return conn.PingContext(ctx)
}

func (m *Manager) connectPostgres(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(BuildPostgresDSN(m.config))
	if err != nil {
		return fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = 2
	poolCfg.MaxConnLifetime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	m.pool = pool

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	m.pgConn = conn

	if m.config.Schema != "" {
		if _, err := conn.Exec(ctx, "SET search_path TO "+sqlutil.QuotePGIdentifier(m.config.Schema)); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
	}
	return conn.Ping(ctx)
}

// Connection returns the pinned session as a cleaner.Connection.
func (m *Manager) Connection() (cleaner.Connection, error) {
	switch {
	case m.sqlConn != nil:
		return dialect.NewMySQL(m.sqlConn), nil
	case m.pgConn != nil:
		return dialect.NewPostgres(m.pgConn), nil
	default:
		return nil, fmt.Errorf("not connected")
	}
}

// Ping verifies the pinned session is alive.
func (m *Manager) Ping(ctx context.Context) error {
	switch {
	case m.sqlConn != nil:
		if err := m.sqlConn.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql ping failed: %w", err)
		}
	case m.pgConn != nil:
		if err := m.pgConn.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

// Close releases the session and the pool.
func (m *Manager) Close() error {
	var errs []error

	if m.sqlConn != nil {
		if err := m.sqlConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session close: %w", err))
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pool close: %w", err))
		}
	}
	if m.pgConn != nil {
		m.pgConn.Release()
	}
	if m.pool != nil {
		m.pool.Close()
	}
	m.sqlConn, m.db, m.pgConn, m.pool = nil, nil, nil, nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

func (m *Manager) closeAll() {
	_ = m.Close()
}

// BuildDSN constructs a MySQL DSN from configuration. An explicit DSN wins.
func BuildDSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// BuildPostgresDSN constructs a postgres:// URL from configuration. An
// explicit DSN wins.
func BuildPostgresDSN(cfg *config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}

	q := url.Values{}
	switch cfg.TLS {
	case "disable":
		q.Set("sslmode", "disable")
	case "required":
		q.Set("sslmode", "require")
	case "preferred", "":
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()

	return u.String()
}
