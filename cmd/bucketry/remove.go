package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/config"
	"github.com/sagarc03/bucketry/storage"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <key1> [key2] ...",
	Short: "Remove objects from a bucket",
	Long: `Soft-delete objects by marking them for removal.

This command marks objects as deleted in the metadata database. Physical
file removal happens later via 'bucketry cleanup'.

Examples:
  # Remove a single object
  bucketry remove --bucket docs myfile.txt

  # Remove multiple objects
  bucketry remove --bucket docs file1.txt file2.txt file3.txt

  # Remove every object under a prefix
  bucketry remove --bucket media --prefix images/

  # Remove quietly (suppress per-object output)
  bucketry remove --bucket docs -q file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removeBucket string
	removePrefix bool
	removeQuiet  bool
)

const removeBatchSize = 100

func init() {
	removeCmd.Flags().StringVarP(&removeBucket, "bucket", "b", "", "bucket to remove from (required)")
	removeCmd.Flags().BoolVarP(&removePrefix, "prefix", "p", false, "treat arguments as prefixes and remove all matching objects")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-object output")
	_ = removeCmd.MarkFlagRequired("bucket")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	if _, err = b.store.HeadBucket(ctx, removeBucket); err != nil {
		return fmt.Errorf("bucket %s: %w", removeBucket, err)
	}

	removed := 0
	notFound := 0

	for _, arg := range args {
		if removePrefix {
			count, nfCount, prefixErr := removeByPrefix(ctx, b.store, removeBucket, arg)
			if prefixErr != nil {
				return prefixErr
			}
			removed += count
			notFound += nfCount
			continue
		}

		ok, deleteErr := removeOne(ctx, b.store, removeBucket, arg)
		if deleteErr != nil {
			return deleteErr
		}
		if ok {
			removed++
		} else {
			notFound++
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}

// removeOne reports false when the key did not exist.
func removeOne(ctx context.Context, store *storage.Store, bucket, key string) (bool, error) {
	err := store.DeleteObject(ctx, bucket, key)
	if errors.Is(err, bucketry.ErrNoSuchKey) {
		if !removeQuiet {
			slog.Warn("not found", "bucket", bucket, "key", key)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", key, err)
	}
	if !removeQuiet {
		slog.Info("removed", "bucket", bucket, "key", key)
	}
	return true, nil
}

// removeByPrefix removes all objects under prefix, one listing page at a time.
func removeByPrefix(ctx context.Context, store *storage.Store, bucket, prefix string) (removed, notFound int, err error) {
	after := ""

	for {
		result, listErr := store.ListObjects(ctx, bucketry.ListObjectsQuery{
			Bucket:  bucket,
			Prefix:  prefix,
			After:   after,
			MaxKeys: removeBatchSize,
		})
		if listErr != nil {
			return removed, notFound, fmt.Errorf("list prefix %s: %w", prefix, listErr)
		}

		for _, item := range result.Objects {
			ok, deleteErr := removeOne(ctx, store, bucket, item.Key)
			if deleteErr != nil {
				return removed, notFound, deleteErr
			}
			if ok {
				removed++
			} else {
				notFound++
			}
		}

		if !result.IsTruncated {
			break
		}
		after = result.NextMarker
	}

	return removed, notFound, nil
}
