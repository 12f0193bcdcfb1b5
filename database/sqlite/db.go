package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/database/internal/schema"
)

// Times are stored as RFC 3339 text.
func expectedTables(tables bucketry.Tables) []schema.Table {
	return []schema.Table{
		{
			Name: tables.Buckets,
			Columns: []schema.Column{
				{Name: "name", Type: "text"},
				{Name: "created_at", Type: "text"},
			},
		},
		{
			Name: tables.Objects,
			Columns: []schema.Column{
				{Name: "id", Type: "text"},
				{Name: "bucket", Type: "text"},
				{Name: "object_key", Type: "text"},
				{Name: "content_type", Type: "text"},
				{Name: "etag", Type: "text"},
				{Name: "file_size_bytes", Type: "integer"},
				{Name: "user_metadata", Type: "text"},
				{Name: "created_at", Type: "text"},
				{Name: "updated_at", Type: "text"},
				{Name: "deleted_at", Type: "text", Nullable: true},
				{Name: "cleaned_up_at", Type: "text", Nullable: true},
			},
		},
	}
}

// ValidateSchema checks that every table exists with the expected columns.
// Extra columns are allowed.
func ValidateSchema(ctx context.Context, db *sql.DB, tables bucketry.Tables) error {
	for _, want := range expectedTables(tables) {
		if !bucketry.IsValidTableName(want.Name) {
			return fmt.Errorf("validate schema: invalid table name: %s", want.Name)
		}

		actual, err := readColumns(ctx, db, want.Name)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", want.Name, err)
		}

		if err := schema.Compare(want, actual); err != nil {
			return fmt.Errorf("validate schema %s: %w", want.Name, err)
		}
	}

	return nil
}

// readColumns returns the columns of table, or an error when it does not exist.
func readColumns(ctx context.Context, db *sql.DB, table string) (map[string]schema.Column, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	if err != nil {
		return nil, fmt.Errorf("check table exists: %w", err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]schema.Column)
	for rows.Next() {
		var (
			cid, notNull, pk int
			col, typ         string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &col, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns[col] = schema.Column{Name: col, Type: typ, Nullable: notNull == 0}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return columns, nil
}
