package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/config"
	"github.com/sagarc03/bucketry/storage"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files into a bucket",
	Long: `Import local files into a bucket.

This command copies files into the storage directory and registers
their metadata in the database, the same way a PutObject request does.
Keys are the file name, or the path relative to the directory for -r.

Examples:
  # Add a single file
  bucketry add --bucket docs /path/to/file.txt

  # Add with a key prefix
  bucketry add --bucket media --dest images/ /path/to/photo.jpg

  # Add a directory recursively, creating the bucket first
  bucketry add --bucket assets --create-bucket -r /path/to/assets

  # Skip existing objects
  bucketry add --bucket docs --no-clobber /path/to/file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addBucket       string
	addDest         string
	addRecursive    bool
	addNoClobber    bool
	addQuiet        bool
	addCreateBucket bool
)

func init() {
	addCmd.Flags().StringVarP(&addBucket, "bucket", "b", "", "destination bucket (required)")
	addCmd.Flags().StringVarP(&addDest, "dest", "d", "", "destination key prefix")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip existing objects instead of overwriting")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	addCmd.Flags().BoolVar(&addCreateBucket, "create-bucket", false, "create the bucket if it does not exist")
	_ = addCmd.MarkFlagRequired("bucket")
	rootCmd.AddCommand(addCmd)
}

// fileEntry is a local file and the key it is stored under.
type fileEntry struct {
	sourcePath string
	key        string
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	if addCreateBucket {
		_, createErr := b.store.CreateBucket(ctx, addBucket)
		switch {
		case createErr == nil:
			slog.Info("created bucket", "bucket", addBucket)
		case errors.Is(createErr, bucketry.ErrBucketExists):
		default:
			return fmt.Errorf("create bucket %s: %w", addBucket, createErr)
		}
	}

	if _, err = b.store.HeadBucket(ctx, addBucket); err != nil {
		return fmt.Errorf("bucket %s: %w", addBucket, err)
	}

	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addDest)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	var added, skipped int
	for _, entry := range files {
		ok, addErr := addFile(ctx, b.store, addBucket, entry)
		if addErr != nil {
			return addErr
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped)
	return nil
}

// addFile uploads entry into bucket. It reports false when --no-clobber
// left an existing object in place.
func addFile(ctx context.Context, store *storage.Store, bucket string, entry fileEntry) (bool, error) {
	if addNoClobber {
		_, err := store.HeadObject(ctx, bucket, entry.key)
		if err == nil {
			if !addQuiet {
				slog.Info("skipped (exists)", "bucket", bucket, "key", entry.key)
			}
			return false, nil
		}
		if !errors.Is(err, bucketry.ErrNoSuchKey) {
			return false, fmt.Errorf("check %s: %w", entry.key, err)
		}
	}

	f, err := os.Open(entry.sourcePath)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", entry.sourcePath, err)
	}
	defer func() { _ = f.Close() }()

	in := bucketry.PutObjectInput{
		Bucket:      bucket,
		Key:         entry.key,
		ContentType: detectContentType(entry.sourcePath),
	}
	m, err := store.PutObject(ctx, in, f)
	if err != nil {
		return false, fmt.Errorf("add %s: %w", entry.key, err)
	}

	if !addQuiet {
		slog.Info("added", "bucket", bucket, "key", m.Key, "size", m.FileSizeBytes, "content_type", in.ContentType)
	}
	return true, nil
}

// collectFiles maps path to object keys under destPrefix. Directories are
// walked only when recursive is set.
func collectFiles(path string, recursive bool, destPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	keyFor := func(rel string) string {
		prefix := strings.Trim(destPrefix, "/")
		if prefix == "" {
			return rel
		}
		return prefix + "/" + rel
	}

	switch {
	case !info.IsDir():
		return []fileEntry{{sourcePath: path, key: keyFor(filepath.Base(path))}}, nil
	case !recursive:
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry{sourcePath: p, key: keyFor(filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// detectContentType guesses a MIME type from the file extension.
func detectContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
