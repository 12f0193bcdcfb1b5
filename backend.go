package bucketry

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Backend is the storage the S3 operations run against.
//
// Errors are reported with the package sentinels (ErrNoSuchBucket,
// ErrNoSuchKey, ErrBucketExists, ErrBucketNotEmpty, ErrInvalidInput),
// optionally wrapped.
type Backend interface {
	ListBuckets(ctx context.Context) ([]Bucket, error)
	CreateBucket(ctx context.Context, name string) (Bucket, error)
	// DeleteBucket fails with ErrBucketNotEmpty while live objects remain.
	DeleteBucket(ctx context.Context, name string) error
	HeadBucket(ctx context.Context, name string) (Bucket, error)

	ListObjects(ctx context.Context, q ListObjectsQuery) (ListObjectsResult, error)
	// PutObject stores content under the given key, replacing any existing
	// object. A read error from content aborts the upload and leaves the
	// previous object untouched.
	PutObject(ctx context.Context, in PutObjectInput, content io.Reader) (MetaData, error)
	// GetObject returns the object's metadata and content. The caller closes
	// the reader.
	GetObject(ctx context.Context, bucket, key string) (MetaData, io.ReadSeekCloser, error)
	HeadObject(ctx context.Context, bucket, key string) (MetaData, error)
	// DeleteObject fails with ErrNoSuchKey if the object does not exist.
	DeleteObject(ctx context.Context, bucket, key string) error
}

// MetaDataRepo defines the interface for managing bucket and object metadata
// persistence. Implementations must handle concurrent access safely.
//
// All methods accept a context for cancellation and timeout control.
type MetaDataRepo interface {
	// CreateBucket records a new bucket. Returns ErrBucketExists if the name is taken.
	CreateBucket(ctx context.Context, name string) (Bucket, error)

	// GetBucket returns ErrNoSuchBucket if the bucket does not exist.
	GetBucket(ctx context.Context, name string) (Bucket, error)

	// ListBuckets returns all buckets ordered by name.
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// DeleteBucket removes an empty bucket.
	//
	// Returns:
	//   - ErrNoSuchBucket if the bucket does not exist
	//   - ErrBucketNotEmpty if it still holds objects that are not soft-deleted
	DeleteBucket(ctx context.Context, name string) error

	// Get retrieves metadata for a live object. Returns ErrNoSuchKey if it
	// does not exist or has been soft-deleted.
	Get(ctx context.Context, bucket, key string) (MetaData, error)

	// Upsert creates or updates metadata for an object. Updating a
	// soft-deleted entry revives it.
	//
	// Returns:
	//   - MetaData: The created or updated metadata entry with ID and timestamps
	//   - bool: true if a new entry was created, false if existing entry was updated
	//   - error: Any database or validation error
	Upsert(ctx context.Context, entry ObjectEntry) (MetaData, bool, error)

	// Delete soft-deletes an object. Returns ErrNoSuchKey if it does not exist.
	Delete(ctx context.Context, bucket, key string) error

	// List returns live objects of q.Bucket whose key starts with q.Prefix and
	// sorts strictly after q.After, in ascending byte order of the key.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// ListPendingCleanup returns soft-deleted entries that have not yet been
	// cleaned up. q.Bucket and q.Prefix narrow the selection when set.
	ListPendingCleanup(ctx context.Context, q ListQuery) (ListResult, error)

	// MarkCleanedUp marks a soft-deleted entry as cleaned up after its file has
	// been removed. Returns ErrNoSuchKey if the entry is not pending cleanup.
	MarkCleanedUp(ctx context.Context, id uuid.UUID) error
}

// FileStorage defines the interface for physical file storage operations.
// Paths are slash separated and relative to the storage root, in the form
// "<bucket>/<key>".
type FileStorage interface {
	// Get opens a file for reading. Returns ErrNoSuchKey if it does not exist.
	// The caller is responsible for closing the returned ReadSeekCloser.
	Get(ctx context.Context, path string) (io.ReadSeekCloser, error)

	// Write stores content at path, replacing an existing file.
	//
	// Implementations should:
	//   - Write atomically (e.g., write to temp file then rename)
	//   - Compute the MD5 ETag during the write
	//   - Leave an existing file untouched when reading content fails
	//   - Create parent directories if they don't exist
	Write(ctx context.Context, path string, content io.Reader) (SaveResult, error)

	// Delete removes a file. Returns ErrNoSuchKey if it does not exist.
	Delete(ctx context.Context, path string) error

	// List returns all files currently in storage. Used to rebuild metadata
	// from disk; Bucket is the first path segment, Key the rest.
	List(ctx context.Context) ([]ObjectEntry, error)
}
