// Package sqlite implements the bucketry.MetaDataRepo interface using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagarc03/bucketry"
)

const defaultListLimit = 1000

const objectColumns = `id, bucket, object_key, content_type, etag, file_size_bytes, user_metadata, created_at, updated_at`

type Repo struct {
	db      *sql.DB
	buckets string
	objects string
	now     func() time.Time
}

var _ bucketry.MetaDataRepo = (*Repo)(nil)

// NewRepo creates a repo over db. Tables must already be validated.
func NewRepo(db *sql.DB, tables bucketry.Tables) *Repo {
	return &Repo{
		db:      db,
		buckets: quoteIdentifier(tables.Buckets),
		objects: quoteIdentifier(tables.Objects),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *Repo) CreateBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (name, created_at) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING`, r.buckets)

	now := r.now()
	result, err := r.db.ExecContext(ctx, query, name, formatTime(now))
	if err != nil {
		return bucketry.Bucket{}, fmt.Errorf("create bucket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return bucketry.Bucket{}, fmt.Errorf("create bucket: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return bucketry.Bucket{}, fmt.Errorf("create bucket: %w", bucketry.ErrBucketExists)
	}

	created, _ := time.Parse(time.RFC3339Nano, formatTime(now))
	return bucketry.Bucket{Name: name, CreatedAt: created}, nil
}

func (r *Repo) GetBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s WHERE name = ?`, r.buckets) //nolint:gosec // table name is validated

	var b bucketry.Bucket
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, name).Scan(&b.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bucketry.Bucket{}, bucketry.ErrNoSuchBucket
		}
		return bucketry.Bucket{}, fmt.Errorf("get bucket: %w", err)
	}

	b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return bucketry.Bucket{}, fmt.Errorf("get bucket: parse created_at: %w", err)
	}

	return b, nil
}

func (r *Repo) ListBuckets(ctx context.Context) ([]bucketry.Bucket, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s ORDER BY name`, r.buckets) //nolint:gosec // table name is validated

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	buckets := []bucketry.Bucket{}
	for rows.Next() {
		var b bucketry.Bucket
		var createdAt string

		if err := rows.Scan(&b.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("list buckets: scan: %w", err)
		}

		b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("list buckets: parse created_at: %w", err)
		}

		buckets = append(buckets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list buckets: rows: %w", err)
	}

	return buckets, nil
}

func (r *Repo) DeleteBucket(ctx context.Context, name string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table names are validated
		`DELETE FROM %s
		WHERE name = ? AND NOT EXISTS (
			SELECT 1 FROM %s WHERE bucket = ? AND deleted_at IS NULL
		)`, r.buckets, r.objects)

	result, err := r.db.ExecContext(ctx, query, name, name)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bucket: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	if _, err := r.GetBucket(ctx, name); err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	return fmt.Errorf("delete bucket: %w", bucketry.ErrBucketNotEmpty)
}

func (r *Repo) Get(ctx context.Context, bucket, key string) (bucketry.MetaData, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s
		WHERE bucket = ? AND object_key = ? AND deleted_at IS NULL`, objectColumns, r.objects)

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query, bucket, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bucketry.MetaData{}, bucketry.ErrNoSuchKey
		}
		return bucketry.MetaData{}, fmt.Errorf("get: %w", err)
	}

	return m, nil
}

func (r *Repo) Upsert(ctx context.Context, entry bucketry.ObjectEntry) (bucketry.MetaData, bool, error) {
	userMetadata, err := encodeUserMetadata(entry.UserMetadata)
	if err != nil {
		return bucketry.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket, object_key) DO UPDATE
		SET content_type = excluded.content_type,
			etag = excluded.etag,
			file_size_bytes = excluded.file_size_bytes,
			user_metadata = excluded.user_metadata,
			updated_at = excluded.updated_at,
			deleted_at = NULL,
			cleaned_up_at = NULL
		RETURNING %s`, r.objects, objectColumns, objectColumns)

	newID := uuid.New()
	now := formatTime(r.now())

	m, err := scanMetaData(r.db.QueryRowContext(ctx, query,
		newID.String(), entry.Bucket, entry.Key, entry.ContentType, entry.ETag, entry.Size, userMetadata, now, now,
	))
	if err != nil {
		return bucketry.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, m.ID == newID, nil
}

func (r *Repo) Delete(ctx context.Context, bucket, key string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET deleted_at = ?
		WHERE bucket = ? AND object_key = ? AND deleted_at IS NULL`, r.objects)

	result, err := r.db.ExecContext(ctx, query, formatTime(r.now()), bucket, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("delete: %w", bucketry.ErrNoSuchKey)
	}

	return nil
}

func (r *Repo) List(ctx context.Context, q bucketry.ListQuery) (bucketry.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NULL", "list")
}

func (r *Repo) ListPendingCleanup(ctx context.Context, q bucketry.ListQuery) (bucketry.ListResult, error) {
	return r.listWithCondition(ctx, q, "deleted_at IS NOT NULL AND cleaned_up_at IS NULL", "list pending cleanup")
}

// listWithCondition matches the prefix with substr rather than LIKE, which
// is case-insensitive in SQLite.
func (r *Repo) listWithCondition(ctx context.Context, q bucketry.ListQuery, whereCondition, opName string) (bucketry.ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name and condition are constants
		`SELECT %s FROM %s
		WHERE %s
			AND (? = '' OR bucket = ?)
			AND substr(object_key, 1, length(?)) = ?
			AND object_key > ?
		ORDER BY bucket, object_key
		LIMIT ?`, objectColumns, r.objects, whereCondition)

	rows, err := r.db.QueryContext(ctx, query, q.Bucket, q.Bucket, q.Prefix, q.Prefix, q.After, limit+1)
	if err != nil {
		return bucketry.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]bucketry.MetaData, 0, min(limit, 64))
	for rows.Next() {
		m, scanErr := scanMetaData(rows)
		if scanErr != nil {
			return bucketry.ListResult{}, fmt.Errorf("%s: %w", opName, scanErr)
		}
		items = append(items, m)
	}

	if err := rows.Err(); err != nil {
		return bucketry.ListResult{}, fmt.Errorf("%s: rows: %w", opName, err)
	}

	more := len(items) > limit
	if more {
		items = items[:limit]
	}

	return bucketry.ListResult{Items: items, More: more}, nil
}

func (r *Repo) MarkCleanedUp(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET cleaned_up_at = ?
		WHERE id = ? AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL`, r.objects)

	result, err := r.db.ExecContext(ctx, query, formatTime(r.now()), id.String())
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark cleaned up: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("mark cleaned up: %w", bucketry.ErrNoSuchKey)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMetaData(row scanner) (bucketry.MetaData, error) {
	var m bucketry.MetaData
	var idStr, userMetadata, createdAt, updatedAt string

	if err := row.Scan(
		&idStr, &m.Bucket, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &userMetadata, &createdAt, &updatedAt,
	); err != nil {
		return bucketry.MetaData{}, err
	}

	var err error
	m.ID, err = uuid.Parse(idStr)
	if err != nil {
		return bucketry.MetaData{}, fmt.Errorf("parse uuid: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return bucketry.MetaData{}, fmt.Errorf("parse created_at: %w", err)
	}

	m.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return bucketry.MetaData{}, fmt.Errorf("parse updated_at: %w", err)
	}

	m.UserMetadata, err = decodeUserMetadata(userMetadata)
	if err != nil {
		return bucketry.MetaData{}, err
	}

	return m, nil
}

func encodeUserMetadata(md map[string]string) (string, error) {
	if len(md) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode user metadata: %w", err)
	}
	return string(data), nil
}

func decodeUserMetadata(s string) (map[string]string, error) {
	var md map[string]string
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil, fmt.Errorf("decode user metadata: %w", err)
	}
	if len(md) == 0 {
		return nil, nil
	}
	return md, nil
}
