package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/lib/pq"

	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = time.Minute

	pingTimeout = 5 * time.Second
)

// Postgres is a pooled PostgreSQL connection
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens a pool for cfg and checks that the server answers
func NewPostgres(cfg *config.DatabaseConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pg := &Postgres{DB: db}
	if err := pg.HealthCheck(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to reach postgres at %s:%d", cfg.Host, cfg.Port)
	}
	return pg, nil
}

// SQL returns the pool
func (p *Postgres) SQL() *sql.DB {
	return p.DB
}

// Driver names the dialect and its migration directory
func (p *Postgres) Driver() string {
	return config.DriverPostgres
}

// MigrateDriver binds golang-migrate to the pool
func (p *Postgres) MigrateDriver() (migratedb.Driver, error) {
	driver, err := postgres.WithInstance(p.DB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration driver")
	}
	return driver, nil
}

// RunMigrations applies the embedded PostgreSQL migrations
func (p *Postgres) RunMigrations() error {
	return runMigrations(p)
}

// HealthCheck pings the server, bounded by pingTimeout
func (p *Postgres) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := p.DB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database health check failed")
	}
	return nil
}

// Close closes the pool; a nil pool is ignored
func (p *Postgres) Close() error {
	if p.DB == nil {
		return nil
	}
	return p.DB.Close()
}
