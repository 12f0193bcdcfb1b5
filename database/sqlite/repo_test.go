package sqlite_test

import (
	"testing"

	"github.com/sagarc03/bucketry/database/internal/repotest"
)

func TestRepo(t *testing.T) {
	t.Parallel()
	repotest.Run(t, setupTestRepo)
}
