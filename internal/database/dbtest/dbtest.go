// Package dbtest opens a migrated Postgres pool for integration tests.
package dbtest

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-auth-sessions/internal/database"
)

// EnvVar names the database used by integration tests, kept apart from DATABASE_URL.
const EnvVar = "TEST_DATABASE_URL"

// NewPool connects to TEST_DATABASE_URL and applies migrations. The test is
// skipped when the variable is unset or the database is unreachable.
func NewPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvVar))
	if raw == "" {
		t.Skip("integration test skipped: " + EnvVar + " is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, raw, 10)
	if err != nil {
		t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", EnvVar, err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return pool
}
