package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"nnoitra-backend/internal/config"
	"nnoitra-backend/internal/logging"
)

//go:embed migrations
var embeddedMigrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps the bun handle together with the driver it was opened with
type DB struct {
	*bun.DB
	driver string
	log    *zap.Logger
}

// Open connects to the configured store. It does not run migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	log = logging.OrNop(log)

	var (
		sqlDB *sql.DB
		err   error
	)
	switch cfg.Driver {
	case DriverSQLite:
		dsn, derr := sqliteDSN(cfg.DSN)
		if derr != nil {
			return nil, derr
		}
		sqlDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// A single connection serializes writers and keeps shared in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
	case DriverPostgres:
		// The pgx stdlib registers driver name "pgx".
		sqlDB, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database opened", zap.String("driver", cfg.Driver))
	return New(sqlDB, cfg.Driver, log), nil
}

// New wraps an existing connection pool. Tests use it with sqlmock.
func New(sqlDB *sql.DB, driver string, log *zap.Logger) *DB {
	var bdb *bun.DB
	if driver == DriverPostgres {
		bdb = bun.NewDB(sqlDB, pgdialect.New())
	} else {
		bdb = bun.NewDB(sqlDB, sqlitedialect.New())
	}
	return &DB{DB: bdb, driver: driver, log: logging.OrNop(log)}
}

// Driver returns "sqlite" or "postgres".
func (db *DB) Driver() string { return db.driver }

// Migrate applies all pending embedded migrations for the driver.
func (db *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(embeddedMigrations, "migrations/"+db.driver)
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	dialect := goose.DialectSQLite3
	if db.driver == DriverPostgres {
		dialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(dialect, db.DB.DB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		db.log.Info("migration applied",
			zap.String("source", r.Source.Path),
			zap.Duration("duration", r.Duration))
	}
	return nil
}

// Ping checks the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// sqliteDSN ensures the parent directory of a file database exists and
// enables foreign keys, WAL and a busy timeout.
func sqliteDSN(dsn string) (string, error) {
	if dsn == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)", nil
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	inMemory := strings.Contains(dsn, "mode=memory")
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !inMemory {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return dsn + sep + pragmas, nil
}
