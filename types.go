package bucketry

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

type Bucket struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type MetaData struct {
	ID            uuid.UUID         `json:"id"`
	Bucket        string            `json:"bucket"`
	Key           string            `json:"key"`
	ContentType   string            `json:"content_type"`
	Etag          string            `json:"etag"`
	FileSizeBytes int64             `json:"file_size_bytes"`
	UserMetadata  map[string]string `json:"user_metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ObjectEntry is what gets recorded in the metadata repository for a stored object.
type ObjectEntry struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	UserMetadata map[string]string
}

// ListQuery selects metadata entries of a bucket in ascending key order,
// starting strictly after After.
type ListQuery struct {
	Bucket string
	Prefix string
	After  string
	Limit  int
}

type ListResult struct {
	Items []MetaData `json:"items"`
	// More is set when entries beyond the returned page exist.
	More bool `json:"more"`
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// PutObjectInput describes an object upload.
type PutObjectInput struct {
	Bucket       string
	Key          string
	ContentType  string
	UserMetadata map[string]string
}

// ListObjectsQuery is an S3 listing request. After is the exclusive start
// position: a key, or a common prefix previously returned for the same
// delimiter.
type ListObjectsQuery struct {
	Bucket    string
	Prefix    string
	Delimiter string
	After     string
	MaxKeys   int
}

type ListObjectsResult struct {
	Objects        []MetaData
	CommonPrefixes []string
	IsTruncated    bool
	// NextMarker is the last key or common prefix returned. Set only when
	// IsTruncated is true.
	NextMarker string
}

// Tables holds configurable table names for metadata storage.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Buckets string `mapstructure:"buckets" yaml:"buckets"`
	Objects string `mapstructure:"objects" yaml:"objects"`
}

// DefaultTables returns the default table names.
func DefaultTables() Tables {
	return Tables{Buckets: "buckets", Objects: "objects"}
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	if t.Buckets == "" {
		return errors.New("validate tables: buckets table name cannot be empty")
	}
	if t.Objects == "" {
		return errors.New("validate tables: objects table name cannot be empty")
	}

	if !IsValidTableName(t.Buckets) {
		return fmt.Errorf("validate tables: invalid buckets table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Buckets)
	}
	if !IsValidTableName(t.Objects) {
		return fmt.Errorf("validate tables: invalid objects table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Objects)
	}

	if t.Buckets == t.Objects {
		return fmt.Errorf("validate tables: buckets and objects tables must differ: %s", t.Buckets)
	}

	return nil
}
