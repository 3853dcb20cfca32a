// Package postgres keeps session checkpoints in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/fleetreplay/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrationsTable keeps fleetreplay's schema version apart from other
// applications sharing the database.
const migrationsTable = "fleetreplay_schema_migrations"

const connectTimeout = 10 * time.Second

// Store is a store.Store on the checkpoints table.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New connects to databaseURL and brings the schema up to date.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One session writes at a time.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reach database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// FromDB wraps an open handle whose schema is already in place.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := queryGet(ctx, s.db, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("get checkpoint %s: %w", key, err)
	}
	return v, err
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := querySet(ctx, s.db, key, value); err != nil {
		return fmt.Errorf("set checkpoint %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := queryRemove(ctx, s.db, key); err != nil {
		return fmt.Errorf("remove checkpoint %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }
