package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "bucketry",
	Short:   "S3-compatible object storage server",
	Long: `Bucketry is a lightweight S3-compatible object storage server backed by
local filesystem storage and a SQLite or PostgreSQL metadata database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringArray("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cmd.ErrOrStderr(), cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringArray("config", nil, "config file path, repeatable; later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: BUCKETRY_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: bucketry.db, env: BUCKETRY_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-path", "", "storage directory path (default: ./data, env: BUCKETRY_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: BUCKETRY_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
