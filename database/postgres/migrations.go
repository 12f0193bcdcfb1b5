package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/bucketry"
)

// migration creates one table and its indexes.
type migration struct {
	table string
	up    []string
}

// COLLATE "C" keeps key order bytewise regardless of the database locale.
func migrations(tables bucketry.Tables) []migration {
	buckets := pgx.Identifier{tables.Buckets}.Sanitize()
	objects := pgx.Identifier{tables.Objects}.Sanitize()
	pending := pgx.Identifier{"idx_" + tables.Objects + "_pending_cleanup"}.Sanitize()

	return []migration{
		{
			table: tables.Buckets,
			up: []string{
				`CREATE TABLE IF NOT EXISTS ` + buckets + ` (
					name TEXT COLLATE "C" NOT NULL PRIMARY KEY,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
			},
		},
		{
			table: tables.Objects,
			up: []string{
				`CREATE TABLE IF NOT EXISTS ` + objects + ` (
					id UUID NOT NULL PRIMARY KEY DEFAULT gen_random_uuid(),
					bucket TEXT COLLATE "C" NOT NULL,
					object_key TEXT COLLATE "C" NOT NULL,
					content_type TEXT NOT NULL,
					etag TEXT NOT NULL,
					file_size_bytes BIGINT NOT NULL,
					user_metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					deleted_at TIMESTAMPTZ,
					cleaned_up_at TIMESTAMPTZ,
					UNIQUE (bucket, object_key)
				)`,
				`CREATE INDEX IF NOT EXISTS ` + pending + ` ON ` + objects + ` (bucket, object_key)
					WHERE deleted_at IS NOT NULL AND cleaned_up_at IS NULL`,
			},
		},
	}
}

// Migrate creates the bucketry tables if they are missing. All statements
// run in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables bucketry.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, m := range migrations(tables) {
			for _, stmt := range m.up {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("migrate %s: %w", m.table, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DropTables removes the bucketry tables, newest first.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables bucketry.Tables) error {
	ms := migrations(tables)
	for i := len(ms) - 1; i >= 0; i-- {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{ms[i].table}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", ms[i].table, err)
		}
	}
	return nil
}
