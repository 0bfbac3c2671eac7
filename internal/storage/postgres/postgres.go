// Package postgres implements storage.Repository backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/n3tuk/maintenance-gate/internal/model"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository implements storage.Repository on a PostgreSQL database.
type Repository struct {
	db *sql.DB
}

// Compile-time check that Repository implements storage.Repository.
var _ storage.Repository = (*Repository)(nil)

// New opens a connection to the database at databaseURL, configures the
// connection pool, and runs any pending migrations.
func New(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// NewWithDB wraps an already opened database. Migrations are not run.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (r *Repository) LatestMaintenance(ctx context.Context) (*model.MaintenanceRecord, error) {
	return queryLatestMaintenance(ctx, r.db)
}

func (r *Repository) SaveMaintenance(ctx context.Context, rec *model.MaintenanceRecord) (*model.MaintenanceRecord, error) {
	return queryInsertMaintenance(ctx, r.db, rec)
}

func (r *Repository) IsActiveAdmin(ctx context.Context, id string) (bool, error) {
	return queryIsActiveAdmin(ctx, r.db, id)
}

func (r *Repository) PruneMaintenance(ctx context.Context, keep int) (int64, error) {
	return queryPruneMaintenance(ctx, r.db, keep)
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.db.Close()
}
