package database

import (
	"database/sql"
	"embed"

	"github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Connection is an open database that carries its own migrations
type Connection interface {
	SQL() *sql.DB
	Driver() string
	MigrateDriver() (migratedb.Driver, error)
	RunMigrations() error
	HealthCheck() error
	Close() error
}

// Open connects to the database selected by cfg.Driver
func Open(cfg *config.DatabaseConfig) (Connection, error) {
	switch cfg.Driver {
	case config.DriverPostgres, "":
		pg, err := NewPostgres(cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errors.Newf("unsupported database driver: %q", cfg.Driver)
}

// NewMigrator creates a golang-migrate instance reading the embedded
// migrations of the connection's driver
func NewMigrator(conn Connection) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations/"+conn.Driver())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded migrations")
	}

	driver, err := conn.MigrateDriver()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", source, conn.Driver(), driver)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration instance")
	}

	return m, nil
}

// runMigrations applies every pending migration. The migrate instance is
// not closed because that would close the shared connection pool.
func runMigrations(conn Connection) error {
	m, err := NewMigrator(conn)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to run migrations")
	}

	return nil
}
