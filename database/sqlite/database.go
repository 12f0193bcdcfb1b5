package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/bucketry"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB is an open SQLite metadata database.
type DB struct {
	db     *sql.DB
	tables bucketry.Tables
}

// Open opens the SQLite database at dsn. Use ":memory:" for a private
// in-memory database.
//
// SQLite serializes writers, so the pool is limited to one connection;
// this also keeps an in-memory database alive for the life of DB.
func Open(ctx context.Context, dsn string, tables bucketry.Tables) (*DB, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{db: db, tables: tables}, nil
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.db, d.tables)
}

// Validate checks that the database schema matches expected structure.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.tables)
}

// Repo returns the MetaDataRepo for database operations.
func (d *DB) Repo() bucketry.MetaDataRepo {
	return NewRepo(d.db, d.tables)
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
