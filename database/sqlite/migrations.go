package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sagarc03/bucketry"
)

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

// migration creates one table and its indexes.
type migration struct {
	table string
	up    []string
}

// Key columns use the default BINARY collation, which orders keys bytewise.
func migrations(tables bucketry.Tables) []migration {
	buckets := quoteIdentifier(tables.Buckets)
	objects := quoteIdentifier(tables.Objects)
	pending := quoteIdentifier("idx_" + tables.Objects + "_pending_cleanup")

	return []migration{
		{
			table: tables.Buckets,
			up: []string{
				`CREATE TABLE IF NOT EXISTS ` + buckets + ` (
					name TEXT NOT NULL PRIMARY KEY,
					created_at TEXT NOT NULL
				)`,
			},
		},
		{
			table: tables.Objects,
			up: []string{
				`CREATE TABLE IF NOT EXISTS ` + objects + ` (
					id TEXT NOT NULL PRIMARY KEY,
					bucket TEXT NOT NULL,
					object_key TEXT NOT NULL,
					content_type TEXT NOT NULL,
					etag TEXT NOT NULL,
					file_size_bytes INTEGER NOT NULL,
					user_metadata TEXT NOT NULL DEFAULT '{}',
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					deleted_at TEXT,
					cleaned_up_at TEXT,
					UNIQUE (bucket, object_key)
				)`,
				`CREATE INDEX IF NOT EXISTS ` + pending + ` ON ` + objects + ` (deleted_at, cleaned_up_at)`,
			},
		},
	}
}

// Migrate creates the bucketry tables if they are missing. All statements
// run in one transaction.
func Migrate(ctx context.Context, db *sql.DB, tables bucketry.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range migrations(tables) {
		for _, stmt := range m.up {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", m.table, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit: %w", err)
	}
	return nil
}

// DropTables removes the bucketry tables, newest first.
func DropTables(ctx context.Context, db *sql.DB, tables bucketry.Tables) error {
	ms := migrations(tables)
	for i := len(ms) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(ms[i].table)); err != nil {
			return fmt.Errorf("drop %s: %w", ms[i].table, err)
		}
	}
	return nil
}
