package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the metadata schema and index existing files",
	Long: `Create the metadata tables and the storage directory if they are missing,
then scan the storage directory and register every file found there.
Top-level directories become buckets. This is useful when:
  - Setting up Bucketry for the first time
  - Setting up Bucketry over existing files
  - Recovering metadata after database loss`,
	RunE: runInit,
}

var initSkipScan bool

func init() {
	initCmd.Flags().BoolVar(&initSkipScan, "skip-scan", false, "only create the schema, do not index files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	slog.Info("database schema ready", "type", cfg.Database.Type)

	if initSkipScan {
		return nil
	}

	slog.Info("scanning storage directory", "path", cfg.Storage.Path)

	indexed, err := b.store.Populate(ctx)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	slog.Info("initialization complete", "files_indexed", indexed)
	return nil
}
