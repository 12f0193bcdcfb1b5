package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/bucketry"
)

// DB is an open PostgreSQL metadata database.
type DB struct {
	pool   *pgxpool.Pool
	tables bucketry.Tables
}

// Connect establishes a connection pool to PostgreSQL.
func Connect(ctx context.Context, dsn string, tables bucketry.Tables) (*DB, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &DB{
		pool:   pool,
		tables: tables,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.pool, d.tables)
}

// Validate checks that the database schema matches expected structure.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.tables)
}

// Repo returns the MetaDataRepo for database operations.
func (d *DB) Repo() bucketry.MetaDataRepo {
	return NewRepo(d.pool, d.tables)
}

// Pool exposes the underlying connection pool.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	d.pool.Close()
	return nil
}
