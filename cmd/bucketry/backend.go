package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sagarc03/bucketry/config"
	"github.com/sagarc03/bucketry/database"
	"github.com/sagarc03/bucketry/filesystem"
	"github.com/sagarc03/bucketry/storage"
)

// backend is the storage stack shared by the subcommands.
type backend struct {
	db    database.Database
	store *storage.Store
	root  *os.Root
}

// openBackend connects the metadata database and opens the storage root.
// With migrate set, missing tables are created and the storage directory
// is made if needed; otherwise both must already exist.
func openBackend(ctx context.Context, cfg *config.Config, migrate bool) (*backend, error) {
	var db database.Database
	var err error
	if migrate {
		db, err = database.Open(ctx, cfg.Database)
	} else {
		db, err = connectExisting(ctx, cfg.Database)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if migrate {
		err = os.MkdirAll(cfg.Storage.Path, 0o750)
	} else {
		_, err = os.Stat(cfg.Storage.Path)
	}
	if err != nil {
		_ = db.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage directory does not exist: %s (run 'bucketry init')", cfg.Storage.Path)
		}
		return nil, fmt.Errorf("storage directory: %w", err)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open storage root: %w", err)
	}

	store, err := storage.New(db.Repo(), filesystem.NewFileStorage(root), storage.Config{
		CleanupTimeout: cfg.Storage.CleanupTimeout,
	})
	if err != nil {
		_ = root.Close()
		_ = db.Close()
		return nil, fmt.Errorf("create store: %w", err)
	}

	return &backend{db: db, store: store, root: root}, nil
}

func connectExisting(ctx context.Context, cfg database.Config) (database.Database, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate database schema (run 'bucketry init'): %w", err)
	}

	return db, nil
}

func (b *backend) Close() error {
	return errors.Join(b.root.Close(), b.db.Close())
}
