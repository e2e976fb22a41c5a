package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce sync.Once
	pgDSN  string
	pgErr  error
)

// GetPostgresDSN starts a shared throwaway Postgres container on first
// use and returns its DSN. Callers should gate on testing.Short so the
// suite stays runnable without Docker.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()
	startPostgresOnce(t)
	if pgErr != nil {
		t.Fatalf("starting postgres container: %v", pgErr)
	}
	return pgDSN
}

func startPostgresOnce(t *testing.T) {
	t.Helper()

	pgOnce.Do(func() {
		// Give generous timeout in CI environments
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		postgresC, err := testcontainers.Run(
			ctx, "postgres:16",
			testcontainers.WithExposedPorts("5432/tcp"),
			testcontainers.WithWaitStrategy(
				wait.ForAll(
					// Container is listening
					wait.ForListeningPort("5432/tcp"),
					// Postgres reports readiness in logs
					wait.ForLog("ready to accept connections"),
					// Actively verify SQL connectivity using a DSN built from the mapped host:port
					wait.ForSQL("5432/tcp", "postgres", func(host string, port nat.Port) string {
						return fmt.Sprintf("postgres://conduct:conduct@%s:%s/conduct_test?sslmode=disable", host, port.Port())
					}).WithQuery("SELECT 1"),
				).WithDeadline(2*time.Minute),
			),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_USER":     "conduct",
				"POSTGRES_PASSWORD": "conduct",
				"POSTGRES_DB":       "conduct_test",
			}),
		)

		if err != nil {
			pgErr = err
			return
		}

		t.Cleanup(func() {
			testcontainers.CleanupContainer(t, postgresC)
		})

		endpoint, err := postgresC.Endpoint(ctx, "")
		if err != nil {
			_ = postgresC.Terminate(context.Background()) // best-effort cleanup
			pgErr = err
			return
		}

		pgDSN = fmt.Sprintf("postgres://conduct:conduct@%s/conduct_test?sslmode=disable", endpoint)
	})
}
