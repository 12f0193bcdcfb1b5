// Package postgres implements the bucketry.MetaDataRepo interface using PostgreSQL
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/bucketry"
)

const defaultListLimit = 1000

const objectColumns = `id, bucket, object_key, content_type, etag, file_size_bytes, user_metadata, created_at, updated_at`

type Repo struct {
	pool    *pgxpool.Pool
	buckets string
	objects string
}

var _ bucketry.MetaDataRepo = (*Repo)(nil)

// NewRepo creates a repo over pool. Tables must already be validated.
func NewRepo(pool *pgxpool.Pool, tables bucketry.Tables) *Repo {
	return &Repo{
		pool:    pool,
		buckets: pgx.Identifier{tables.Buckets}.Sanitize(),
		objects: pgx.Identifier{tables.Objects}.Sanitize(),
	}
}

func (r *Repo) CreateBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING name, created_at
	`, r.buckets)

	var b bucketry.Bucket
	err := r.pool.QueryRow(ctx, query, name).Scan(&b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bucketry.Bucket{}, fmt.Errorf("create bucket: %w", bucketry.ErrBucketExists)
		}
		return bucketry.Bucket{}, fmt.Errorf("create bucket: %w", err)
	}

	return b, nil
}

func (r *Repo) GetBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s WHERE name = $1`, r.buckets)

	var b bucketry.Bucket
	err := r.pool.QueryRow(ctx, query, name).Scan(&b.Name, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return bucketry.Bucket{}, bucketry.ErrNoSuchBucket
		}
		return bucketry.Bucket{}, fmt.Errorf("get bucket: %w", err)
	}

	return b, nil
}

func (r *Repo) ListBuckets(ctx context.Context) ([]bucketry.Bucket, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s ORDER BY name`, r.buckets)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (bucketry.Bucket, error) {
		var b bucketry.Bucket
		err := row.Scan(&b.Name, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	return buckets, nil
}

func (r *Repo) DeleteBucket(ctx context.Context, name string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE name = $1 AND NOT EXISTS (
			SELECT 1 FROM %s WHERE bucket = $1 AND deleted_at IS NULL
		)
	`, r.buckets, r.objects)

	result, err := r.pool.Exec(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetBucket(ctx, name); err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	return fmt.Errorf("delete bucket: %w", bucketry.ErrBucketNotEmpty)
}

func (r *Repo) Get(ctx context.Context, bucket, key string) (bucketry.MetaData, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE bucket = $1 AND object_key = $2 AND deleted_at IS NULL
	`, objectColumns, r.objects)

	m, err := scanMetaData(r.pool.QueryRow(ctx, query, bucket, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	query := fmt.Sprintf(`
		INSERT INTO %s (bucket, object_key, content_type, etag, file_size_bytes, user_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bucket, object_key) DO UPDATE
		SET content_type = EXCLUDED.content_type,
			etag = EXCLUDED.etag,
			file_size_bytes = EXCLUDED.file_size_bytes,
			user_metadata = EXCLUDED.user_metadata,
			updated_at = NOW(),
			deleted_at = NULL,
			cleaned_up_at = NULL
		RETURNING %s, (xmax = 0) AS inserted
	`, r.objects, objectColumns)

	var m bucketry.MetaData
	var rawMetadata []byte
	var inserted bool

	err = r.pool.QueryRow(ctx, query,
		entry.Bucket, entry.Key, entry.ContentType, entry.ETag, entry.Size, userMetadata,
	).Scan(
		&m.ID, &m.Bucket, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &rawMetadata, &m.CreatedAt, &m.UpdatedAt, &inserted,
	)
	if err != nil {
		return bucketry.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	m.UserMetadata, err = decodeUserMetadata(rawMetadata)
	if err != nil {
		return bucketry.MetaData{}, false, fmt.Errorf("upsert: %w", err)
	}

	return m, inserted, nil
}

func (r *Repo) Delete(ctx context.Context, bucket, key string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW()
		WHERE bucket = $1 AND object_key = $2 AND deleted_at IS NULL
	`, r.objects)

	result, err := r.pool.Exec(ctx, query, bucket, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	if result.RowsAffected() == 0 {
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

func (r *Repo) listWithCondition(ctx context.Context, q bucketry.ListQuery, whereCondition, opName string) (bucketry.ListResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
			AND ($1 = '' OR bucket = $1)
			AND object_key LIKE $2 || '%%'
			AND object_key > $3
		ORDER BY bucket, object_key
		LIMIT $4
	`, objectColumns, r.objects, whereCondition)

	rows, err := r.pool.Query(ctx, query, q.Bucket, bucketry.EscapeLikePattern(q.Prefix), q.After, limit+1)
	if err != nil {
		return bucketry.ListResult{}, fmt.Errorf("%s: %w", opName, err)
	}
	defer rows.Close()

	items := make([]bucketry.MetaData, 0, min(limit, 64))
	for rows.Next() {
		m, scanErr := scanMetaData(rows)
		if scanErr != nil {
			return bucketry.ListResult{}, fmt.Errorf("%s: scan: %w", opName, scanErr)
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
	query := fmt.Sprintf(`
		UPDATE %s
		SET cleaned_up_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL AND cleaned_up_at IS NULL
	`, r.objects)

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark cleaned up: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("mark cleaned up: %w", bucketry.ErrNoSuchKey)
	}

	return nil
}

func scanMetaData(row pgx.Row) (bucketry.MetaData, error) {
	var m bucketry.MetaData
	var rawMetadata []byte

	if err := row.Scan(
		&m.ID, &m.Bucket, &m.Key, &m.ContentType, &m.Etag, &m.FileSizeBytes, &rawMetadata, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return bucketry.MetaData{}, err
	}

	var err error
	m.UserMetadata, err = decodeUserMetadata(rawMetadata)
	if err != nil {
		return bucketry.MetaData{}, err
	}

	return m, nil
}

// encodeUserMetadata returns JSON text, which pgx sends to a jsonb
// parameter unchanged.
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

func decodeUserMetadata(data []byte) (map[string]string, error) {
	var md map[string]string
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode user metadata: %w", err)
	}
	if len(md) == 0 {
		return nil, nil
	}
	return md, nil
}
