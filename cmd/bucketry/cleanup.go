package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/config"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up soft-deleted files",
	Long: `Permanently remove soft-deleted files from storage.

This command processes all objects that have been deleted through the API
but whose files are still on disk. For each one it:
  1. Deletes the physical file from storage
  2. Marks the metadata entry as cleaned up

Run this periodically to reclaim storage space from deleted objects.`,
	RunE: runCleanup,
}

var (
	cleanupLimit  int
	cleanupBucket string
	cleanupPrefix string
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupLimit, "limit", 100, "number of entries to process per batch")
	cleanupCmd.Flags().StringVar(&cleanupBucket, "bucket", "", "only clean up this bucket")
	cleanupCmd.Flags().StringVar(&cleanupPrefix, "prefix", "", "only clean up keys with this prefix")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
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

	slog.Info("starting cleanup", "limit", cleanupLimit, "bucket", cleanupBucket, "prefix", cleanupPrefix)

	cleaned, err := b.store.Tombstone(ctx, bucketry.ListQuery{
		Bucket: cleanupBucket,
		Prefix: cleanupPrefix,
		Limit:  cleanupLimit,
	})
	if err != nil {
		return fmt.Errorf("tombstone: %w", err)
	}

	slog.Info("cleanup complete", "files_cleaned", cleaned)
	return nil
}
