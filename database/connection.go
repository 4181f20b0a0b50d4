// backend/database/connection.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gewnthar/feargreed/backend/config"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the relational record store. All methods are safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// dialect isolates the few statements that differ between MySQL and SQLite.
type dialect struct {
	name        string
	schema      []string
	upsertRun   string
	isDuplicate func(error) bool
}

// InitDB opens the database selected by cfg.Driver, verifies it and ensures the schema.
func InitDB(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "mysql":
		return OpenMySQL(ctx, cfg)
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenMySQL connects to MariaDB/MySQL. Dates are read back as YYYY-MM-DD strings,
// so parseTime stays off.
func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == "" {
		port = "3306"
	}
	mc.Addr = net.JoinHostPort(cfg.Host, port)
	mc.DBName = cfg.DBName
	mc.ParseTime = false

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return finishOpen(ctx, db, mysqlDialect)
}

// OpenSQLite opens (creating if needed) a SQLite file. A single connection
// serializes writers so the unique index, not SQLITE_BUSY, decides races.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	return finishOpen(ctx, db, sqliteDialect)
}

func finishOpen(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	// Ping the database to verify connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, dialect: d, now: time.Now}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("driver", d.name).Msg("Database: connected and schema ensured")
	return store, nil
}

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema for %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
// Typically called on application shutdown.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	log.Info().Msg("Database: connection closed")
	return err
}

var errNotInitialized = errors.New("database connection is not initialized")

func isMySQLDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062 // ER_DUP_ENTRY
}

func isSQLiteDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// primary code only when extended result codes are off
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
