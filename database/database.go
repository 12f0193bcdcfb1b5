package database

import (
	"context"
	"fmt"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/database/postgres"
	"github.com/sagarc03/bucketry/database/sqlite"
)

// Supported database types.
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Config holds the configuration for connecting to a metadata backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" yaml:"dsn" validate:"required"`
	// Tables names the bucket and object tables
	Tables bucketry.Tables `mapstructure:"tables" yaml:"tables"`
}

// Database is a connected metadata backend.
type Database interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	Repo() bucketry.MetaDataRepo
	Close() error
}

var (
	_ Database = (*sqlite.DB)(nil)
	_ Database = (*postgres.DB)(nil)
)

// Connect opens the configured backend without touching its schema.
// Empty table names fall back to bucketry.DefaultTables.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	tables := cfg.Tables
	defaults := bucketry.DefaultTables()
	if tables.Buckets == "" {
		tables.Buckets = defaults.Buckets
	}
	if tables.Objects == "" {
		tables.Objects = defaults.Objects
	}

	switch cfg.Type {
	case TypeSQLite:
		return sqlite.Open(ctx, cfg.DSN, tables)
	case TypePostgres:
		return postgres.Connect(ctx, cfg.DSN, tables)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Type)
	}
}

// Open connects, runs migrations and validates the schema.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Type, err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", cfg.Type, err)
	}

	return db, nil
}
