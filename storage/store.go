// Package storage implements bucketry.Backend on top of a metadata
// repository and a file store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sagarc03/bucketry"
)

const (
	defaultCleanupTimeout = 30 * time.Second
	defaultContentType    = "application/octet-stream"

	listPageSize          = 1000
	defaultTombstoneLimit = 100
	// maxRune sorts after every key that shares its prefix.
	maxRune = "\U0010FFFF"
)

// Config holds configuration options for Store.
type Config struct {
	CleanupTimeout time.Duration // Timeout for cleanup operations (default: 30s)
}

// Store combines a MetaDataRepo and a FileStorage into a bucketry.Backend.
// Content lives at "<bucket>/<key>" in the file store; the repository is
// the source of truth for what exists.
type Store struct {
	repo           bucketry.MetaDataRepo
	files          bucketry.FileStorage
	cleanupTimeout time.Duration
}

var _ bucketry.Backend = (*Store)(nil)

// New creates a Store.
func New(repo bucketry.MetaDataRepo, files bucketry.FileStorage, cfg Config) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("new store: %w: repo cannot be nil", bucketry.ErrInvalidInput)
	}
	if files == nil {
		return nil, fmt.Errorf("new store: %w: file storage cannot be nil", bucketry.ErrInvalidInput)
	}

	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = defaultCleanupTimeout
	}

	return &Store{repo: repo, files: files, cleanupTimeout: cleanupTimeout}, nil
}

func objectPath(bucket, key string) string {
	return bucket + "/" + key
}

func (s *Store) ListBuckets(ctx context.Context) ([]bucketry.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets, err := s.repo.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return buckets, nil
}

func (s *Store) CreateBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return bucketry.Bucket{}, fmt.Errorf("create bucket: %w", err)
	}

	if !bucketry.IsValidBucketName(name) {
		return bucketry.Bucket{}, fmt.Errorf("create bucket %s: %w", name, bucketry.ErrInvalidInput)
	}

	b, err := s.repo.CreateBucket(ctx, name)
	if err != nil {
		return bucketry.Bucket{}, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return b, nil
}

func (s *Store) DeleteBucket(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}

	if err := s.repo.DeleteBucket(ctx, name); err != nil {
		return fmt.Errorf("delete bucket %s: %w", name, err)
	}
	return nil
}

func (s *Store) HeadBucket(ctx context.Context, name string) (bucketry.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return bucketry.Bucket{}, fmt.Errorf("head bucket: %w", err)
	}

	b, err := s.repo.GetBucket(ctx, name)
	if err != nil {
		return bucketry.Bucket{}, fmt.Errorf("head bucket %s: %w", name, err)
	}
	return b, nil
}

// PutObject writes content to the file store and records its metadata.
// If the metadata upsert fails the written file is removed again, using a
// fresh context bounded by the cleanup timeout.
func (s *Store) PutObject(ctx context.Context, in bucketry.PutObjectInput, content io.Reader) (bucketry.MetaData, error) {
	if err := ctx.Err(); err != nil {
		return bucketry.MetaData{}, fmt.Errorf("put object: %w", err)
	}

	if !bucketry.IsValidKey(in.Key) {
		return bucketry.MetaData{}, fmt.Errorf("put object %s: %w: invalid key", in.Key, bucketry.ErrInvalidInput)
	}

	if _, err := s.repo.GetBucket(ctx, in.Bucket); err != nil {
		return bucketry.MetaData{}, fmt.Errorf("put object %s/%s: %w", in.Bucket, in.Key, err)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	path := objectPath(in.Bucket, in.Key)

	saveResult, writeErr := s.files.Write(ctx, path, content)
	if writeErr != nil {
		return bucketry.MetaData{}, fmt.Errorf("put object %s: write failed: %w", path, writeErr)
	}

	entry := bucketry.ObjectEntry{
		Bucket:       in.Bucket,
		Key:          in.Key,
		Size:         saveResult.BytesWritten,
		ETag:         saveResult.Etag,
		ContentType:  contentType,
		UserMetadata: in.UserMetadata,
	}

	metaData, _, upsertErr := s.repo.Upsert(ctx, entry)
	if upsertErr != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
		defer cancel()

		if delErr := s.files.Delete(cleanupCtx, path); delErr != nil {
			return bucketry.MetaData{}, fmt.Errorf("put object %s: metadata upsert failed (%w) and cleanup failed: %w", path, upsertErr, delErr)
		}
		return bucketry.MetaData{}, fmt.Errorf("put object %s: metadata upsert failed: %w", path, upsertErr)
	}

	return metaData, nil
}

func (s *Store) GetObject(ctx context.Context, bucket, key string) (bucketry.MetaData, io.ReadSeekCloser, error) {
	m, err := s.HeadObject(ctx, bucket, key)
	if err != nil {
		return bucketry.MetaData{}, nil, fmt.Errorf("get object: %w", err)
	}

	f, err := s.files.Get(ctx, objectPath(m.Bucket, m.Key))
	if err != nil {
		return bucketry.MetaData{}, nil, fmt.Errorf("get object: %w", err)
	}

	return m, f, nil
}

// HeadObject reports ErrNoSuchBucket before ErrNoSuchKey.
func (s *Store) HeadObject(ctx context.Context, bucket, key string) (bucketry.MetaData, error) {
	if err := ctx.Err(); err != nil {
		return bucketry.MetaData{}, fmt.Errorf("head object: %w", err)
	}

	m, err := s.repo.Get(ctx, bucket, key)
	if errors.Is(err, bucketry.ErrNoSuchKey) {
		if _, bucketErr := s.repo.GetBucket(ctx, bucket); bucketErr != nil {
			return bucketry.MetaData{}, fmt.Errorf("head object %s/%s: %w", bucket, key, bucketErr)
		}
	}
	if err != nil {
		return bucketry.MetaData{}, fmt.Errorf("head object %s/%s: %w", bucket, key, err)
	}

	return m, nil
}

// DeleteObject soft-deletes the object. The file is removed later by Tombstone.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	if _, err := s.repo.GetBucket(ctx, bucket); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}

	if err := s.repo.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}

	return nil
}

// ListObjects lists a bucket in key order, rolling keys that contain the
// delimiter after the prefix into common prefixes. Objects and common
// prefixes together count against MaxKeys.
func (s *Store) ListObjects(ctx context.Context, q bucketry.ListObjectsQuery) (bucketry.ListObjectsResult, error) {
	if err := ctx.Err(); err != nil {
		return bucketry.ListObjectsResult{}, fmt.Errorf("list objects: %w", err)
	}

	if _, err := s.repo.GetBucket(ctx, q.Bucket); err != nil {
		return bucketry.ListObjectsResult{}, fmt.Errorf("list objects %s: %w", q.Bucket, err)
	}

	var res bucketry.ListObjectsResult
	if q.MaxKeys <= 0 {
		return res, nil
	}

	after := q.After
	if after != "" && commonPrefix(after, q.Prefix, q.Delimiter) == after {
		after += maxRune
	}

	count := 0
	limit := min(q.MaxKeys+1, listPageSize)

	for {
		page, err := s.repo.List(ctx, bucketry.ListQuery{
			Bucket: q.Bucket,
			Prefix: q.Prefix,
			After:  after,
			Limit:  limit,
		})
		if err != nil {
			return bucketry.ListObjectsResult{}, fmt.Errorf("list objects %s: %w", q.Bucket, err)
		}

		jumped := false
		for _, m := range page.Items {
			if count == q.MaxKeys {
				res.IsTruncated = true
				return res, nil
			}
			count++

			if cp := commonPrefix(m.Key, q.Prefix, q.Delimiter); cp != "" {
				res.CommonPrefixes = append(res.CommonPrefixes, cp)
				res.NextMarker = cp
				after = cp + maxRune
				jumped = true
				break
			}

			res.Objects = append(res.Objects, m)
			res.NextMarker = m.Key
			after = m.Key
		}

		if !jumped && !page.More {
			break
		}
	}

	res.NextMarker = ""
	return res, nil
}

// commonPrefix returns the common prefix key rolls up into, or "" when the
// key is listed on its own.
func commonPrefix(key, prefix, delimiter string) string {
	if delimiter == "" || !strings.HasPrefix(key, prefix) {
		return ""
	}

	rest := key[len(prefix):]
	i := strings.Index(rest, delimiter)
	if i < 0 {
		return ""
	}

	return prefix + rest[:i+len(delimiter)]
}

// Populate synchronizes metadata from physical storage files.
// It lists all files in storage and creates or updates their corresponding
// metadata entries, creating any bucket that does not exist yet.
//
// Note: This operation is not atomic. If it fails partway through, some files may have
// been processed while others remain unprocessed.
func (s *Store) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	files, listErr := s.files.List(ctx)
	if listErr != nil {
		return 0, fmt.Errorf("populate: %w", listErr)
	}

	seen := make(map[string]bool)
	count := 0

	for _, file := range files {
		if !bucketry.IsValidBucketName(file.Bucket) || !bucketry.IsValidKey(file.Key) {
			slog.WarnContext(ctx, "populate: skipping file", "bucket", file.Bucket, "key", file.Key)
			continue
		}

		if !seen[file.Bucket] {
			if _, err := s.repo.CreateBucket(ctx, file.Bucket); err != nil && !errors.Is(err, bucketry.ErrBucketExists) {
				return count, fmt.Errorf("populate bucket '%s': %w", file.Bucket, err)
			}
			seen[file.Bucket] = true
		}

		if _, _, upsertErr := s.repo.Upsert(ctx, file); upsertErr != nil {
			return count, fmt.Errorf("populate '%s': %w", objectPath(file.Bucket, file.Key), upsertErr)
		}
		count++
	}

	return count, nil
}

// Tombstone permanently removes soft-deleted files from storage and marks
// them as cleaned up. q.Bucket and q.Prefix narrow the selection; q.Limit
// is the page size.
//
// If a file has already been deleted from storage (ErrNoSuchKey), it is
// marked as cleaned up anyway; a previous attempt may have deleted the
// file but failed to mark the metadata.
//
// Returns the number of entries cleaned up.
func (s *Store) Tombstone(ctx context.Context, q bucketry.ListQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("tombstone: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultTombstoneLimit
	}

	totalCleaned := 0

	for {
		if err := ctx.Err(); err != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", err)
		}

		// Cleaned entries drop out of the pending set, so every page starts
		// from the beginning.
		result, listErr := s.repo.ListPendingCleanup(ctx, bucketry.ListQuery{
			Bucket: q.Bucket,
			Prefix: q.Prefix,
			Limit:  limit,
		})
		if listErr != nil {
			return totalCleaned, fmt.Errorf("tombstone: %w", listErr)
		}

		if len(result.Items) == 0 {
			break
		}

		for _, file := range result.Items {
			path := objectPath(file.Bucket, file.Key)

			deleteErr := s.files.Delete(ctx, path)
			if deleteErr != nil && !errors.Is(deleteErr, bucketry.ErrNoSuchKey) {
				return totalCleaned, fmt.Errorf("tombstone '%s': %w", path, deleteErr)
			}

			if err := s.repo.MarkCleanedUp(ctx, file.ID); err != nil {
				return totalCleaned, fmt.Errorf("tombstone '%s': %w", path, err)
			}

			totalCleaned++
		}

		if !result.More {
			break
		}
	}

	return totalCleaned, nil
}
