package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/database/internal/schema"
)

const timestamptz = "timestamp with time zone"

func expectedTables(tables bucketry.Tables) []schema.Table {
	return []schema.Table{
		{
			Name: tables.Buckets,
			Columns: []schema.Column{
				{Name: "name", Type: "text"},
				{Name: "created_at", Type: timestamptz},
			},
		},
		{
			Name: tables.Objects,
			Columns: []schema.Column{
				{Name: "id", Type: "uuid"},
				{Name: "bucket", Type: "text"},
				{Name: "object_key", Type: "text"},
				{Name: "content_type", Type: "text"},
				{Name: "etag", Type: "text"},
				{Name: "file_size_bytes", Type: "bigint"},
				{Name: "user_metadata", Type: "jsonb"},
				{Name: "created_at", Type: timestamptz},
				{Name: "updated_at", Type: timestamptz},
				{Name: "deleted_at", Type: timestamptz, Nullable: true},
				{Name: "cleaned_up_at", Type: timestamptz, Nullable: true},
			},
		},
	}
}

// ValidateSchema checks that every table exists in the public schema with
// the expected columns. Extra columns are allowed.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables bucketry.Tables) error {
	for _, want := range expectedTables(tables) {
		if !bucketry.IsValidTableName(want.Name) {
			return fmt.Errorf("validate schema: invalid table name: %s", want.Name)
		}

		actual, err := readColumns(ctx, pool, want.Name)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", want.Name, err)
		}

		if err := schema.Compare(want, actual); err != nil {
			return fmt.Errorf("validate schema %s: %w", want.Name, err)
		}
	}

	return nil
}

type columnRow struct {
	Name       string `db:"column_name"`
	DataType   string `db:"data_type"`
	IsNullable string `db:"is_nullable"`
}

// readColumns returns the columns of table, or an error when it does not exist.
func readColumns(ctx context.Context, pool *pgxpool.Pool, table string) (map[string]schema.Column, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, table).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check table exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[columnRow])
	if err != nil {
		return nil, fmt.Errorf("scan columns: %w", err)
	}

	columns := make(map[string]schema.Column, len(list))
	for _, c := range list {
		columns[c.Name] = schema.Column{
			Name:     c.Name,
			Type:     c.DataType,
			Nullable: c.IsNullable == "YES",
		}
	}
	return columns, nil
}
