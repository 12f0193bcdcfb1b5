package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce      sync.Once
	pgContainer *pgcontainer.PostgresContainer
	pgDSN       string
	pgErr       error
)

// getSharedPostgresDatabase returns the DSN of a PostgreSQL container shared
// by all tests. The container is started on first use.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	pgOnce.Do(func() {
		ctx := context.Background()

		pgContainer, pgErr = pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if pgErr != nil {
			return
		}

		pgDSN, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})

	if pgErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgErr)
	}

	return pgDSN
}

func terminateSharedPostgres() {
	if pgContainer != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
	}
}
