package main

import (
	"path/filepath"
	"testing"

	"github.com/sagarc03/bucketry/database"
)

func databaseConfig(t *testing.T) database.Config {
	t.Helper()
	return database.Config{
		Type: database.TypeSQLite,
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	}
}
