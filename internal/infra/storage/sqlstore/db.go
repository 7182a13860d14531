// Package sqlstore implements the storage interfaces on database/sql through
// sqlx. PostgreSQL is the production dialect; sqlite3 serves local runs and tests.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers "postgres"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vietddude/docsite/internal/core/metrics"
)

// Supported drivers.
const (
	DriverPgx     = "pgx"
	DriverPQ      = "postgres"
	DriverSQLite3 = "sqlite3"
)

// Dialect is the SQL flavour behind a driver. The values match goose dialect names.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite3  Dialect = "sqlite3"
)

// Config holds database connection configuration.
type Config struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxConns        int           `yaml:"max_conns"`
	MinConns        int           `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DB wraps the shared connection pool.
type DB struct {
	*sqlx.DB
	dialect Dialect
}

// Open creates the connection pool and verifies it with a ping.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPgx
	}

	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.URL
	if dialect == DialectSQLite3 {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set pool configuration
	if dialect == DialectSQLite3 {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}

	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}

	lifetime := cfg.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	db.SetConnMaxLifetime(lifetime)

	idle := cfg.ConnMaxIdleTime
	if idle == 0 {
		idle = 30 * time.Minute
	}
	db.SetConnMaxIdleTime(idle)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	// Test connection
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, dialect: dialect}, nil
}

// Dialect reports the SQL flavour of the pool.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// StartMetricsCollector starts a background goroutine exporting pool usage.
func (db *DB) StartMetricsCollector(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.collectMetrics()
			}
		}
	}()
}

func (db *DB) collectMetrics() {
	stats := db.Stats()
	metrics.DBConnectionPoolUsage.WithLabelValues("open").Set(float64(stats.OpenConnections))
	metrics.DBConnectionPoolUsage.WithLabelValues("in_use").Set(float64(stats.InUse))
	metrics.DBConnectionPoolUsage.WithLabelValues("idle").Set(float64(stats.Idle))
	metrics.DBConnectionPoolUsage.WithLabelValues("max").Set(float64(stats.MaxOpenConnections))
}

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPgx, DriverPQ:
		return DialectPostgres, nil
	case DriverSQLite3:
		return DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// sqliteDSN turns on foreign key enforcement, which sqlite leaves off per connection.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}
