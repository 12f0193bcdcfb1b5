// Package filesystem provides a file system storage backend for bucketry.
// Objects live at <root>/<bucket>/<key>. Writes go through a temp file and
// a rename, MD5 etags are computed while copying, and content types are
// detected from file extensions.
package filesystem

import (
	"context"
	"crypto/md5" //nolint:gosec // S3 ETags are MD5 digests
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sagarc03/bucketry"
)

const tmpPrefix = ".t"

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

var _ bucketry.FileStorage = (*Store)(nil)

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Get opens a file for reading. Returns bucketry.ErrNoSuchKey if the file does not exist.
func (s *Store) Get(ctx context.Context, p string) (io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.root.Open(filepath.FromSlash(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, bucketry.ErrNoSuchKey
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, bucketry.ErrNoSuchKey
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to p using a temp file and rename.
// It creates intermediate directories as needed and returns the number of
// bytes written with the MD5 etag. If content fails to read, or ctx is
// canceled, the file at p is left as it was.
func (s *Store) Write(ctx context.Context, p string, content io.Reader) (bucketry.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return bucketry.SaveResult{}, ctxErr
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return bucketry.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := md5.New() //nolint:gosec // S3 ETags are MD5 digests
	w := io.MultiWriter(h, t)

	fileSizeBytes, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return bucketry.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return bucketry.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	if err := t.Close(); err != nil {
		return bucketry.SaveResult{}, fmt.Errorf("could not close written file: %w", err)
	}

	dest := filepath.FromSlash(p)
	if destDir := filepath.Dir(dest); destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return bucketry.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if renameErr := s.root.Rename(tmpFile, dest); renameErr != nil {
		return bucketry.SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true

	return bucketry.SaveResult{BytesWritten: fileSizeBytes, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a file and any parent directories it leaves empty, up to
// but not including the bucket directory. Returns bucketry.ErrNoSuchKey if
// the file does not exist.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := filepath.FromSlash(p)

	info, err := s.root.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bucketry.ErrNoSuchKey
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	if info.IsDir() {
		return bucketry.ErrNoSuchKey
	}

	if err := s.root.Remove(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bucketry.ErrNoSuchKey
		}
		return fmt.Errorf("could not delete file: %w", err)
	}

	s.pruneEmptyDirs(path.Dir(p))
	return nil
}

// pruneEmptyDirs stops at the first directory that is not empty. Remove
// refuses non-empty directories, so no listing is needed.
func (s *Store) pruneEmptyDirs(dir string) {
	for strings.Contains(dir, "/") {
		if err := s.root.Remove(filepath.FromSlash(dir)); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

// List walks every bucket directory and returns all files with their size,
// MD5 etag and detected content type. Files directly under the root are not
// part of any bucket and are skipped. This is intended for one-time initial
// sync operations.
func (s *Store) List(ctx context.Context) ([]bucketry.ObjectEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []bucketry.ObjectEntry

	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		bucket, key, ok := strings.Cut(p, "/")
		if !ok {
			return nil
		}

		entry, err := s.describe(p, d)
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}
		entry.Bucket = bucket
		entry.Key = key

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func (s *Store) describe(p string, d fs.DirEntry) (bucketry.ObjectEntry, error) {
	info, err := d.Info()
	if err != nil {
		return bucketry.ObjectEntry{}, err
	}

	f, err := s.root.Open(filepath.FromSlash(p))
	if err != nil {
		return bucketry.ObjectEntry{}, err
	}

	h := md5.New() //nolint:gosec // S3 ETags are MD5 digests
	_, copyErr := io.Copy(h, f)

	if closeErr := f.Close(); closeErr != nil {
		slog.Warn("failed to close file", "path", p, "err", closeErr)
	}

	if copyErr != nil {
		return bucketry.ObjectEntry{}, copyErr
	}

	return bucketry.ObjectEntry{
		Size:        info.Size(),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		ContentType: detectContentType(p),
	}, nil
}

func detectContentType(p string) string {
	contentType := mime.TypeByExtension(path.Ext(p))

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
