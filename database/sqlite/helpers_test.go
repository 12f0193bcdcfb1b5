package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/database/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) bucketry.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return bucketry.Tables{
		Buckets: "buckets_" + suffix,
		Objects: "objects_" + suffix,
	}
}

// setupTestDB opens a private in-memory database, closed when t ends.
func setupTestDB(t *testing.T, tables bucketry.Tables) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), ":memory:", tables)
	require.NoError(t, err, "failed to open")

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// setupTestRepo returns a migrated repo with unique table names.
func setupTestRepo(t *testing.T) bucketry.MetaDataRepo {
	t.Helper()

	db := setupTestDB(t, randomTables(t))
	require.NoError(t, db.Migrate(context.Background()), "failed to migrate")

	return db.Repo()
}
