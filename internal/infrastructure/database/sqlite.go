package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
)

// SQLite represents an embedded SQLite database
type SQLite struct {
	DB   *sql.DB
	Path string
}

// OpenSQLite opens (creating if needed) the SQLite database at path
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory for %s", path)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to open sqlite database at %s", path)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{DB: db, Path: path}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "failed to execute %q", pragma)
		}
	}

	return nil
}

// SQL returns the underlying connection pool
func (s *SQLite) SQL() *sql.DB {
	return s.DB
}

// Driver returns the database/sql driver name
func (s *SQLite) Driver() string {
	return config.DriverSQLite
}

// MigrateDriver returns the golang-migrate driver bound to this connection
func (s *SQLite) MigrateDriver() (migratedb.Driver, error) {
	driver, err := sqlite3.WithInstance(s.DB, &sqlite3.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration driver")
	}
	return driver, nil
}

// RunMigrations applies the embedded SQLite migrations
func (s *SQLite) RunMigrations() error {
	return runMigrations(s)
}

// HealthCheck checks if the database connection is healthy
func (s *SQLite) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.DB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database health check failed")
	}

	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
