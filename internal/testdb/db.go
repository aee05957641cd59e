//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds every database setup step.
const TestTimeout = 10 * time.Second

// DatabaseURLEnvVars are checked in order for a test database URL.
var DatabaseURLEnvVars = []string{"TASKFLOW_TEST_DB_URL", "DATABASE_URL", "TASKFLOW_DATABASE_URL"}

var migrateOnce sync.Once
var migrateErr error

// GetTestDatabaseURL returns the first database URL found in the environment,
// or an empty string.
func GetTestDatabaseURL() string {
	for _, name := range DatabaseURLEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// GetTestDB opens a connection to the test database with the schema
// migrated to the latest version. The test is skipped when no database URL
// is configured. The connection is closed when the test ends.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("no test database configured; set DATABASE_URL to run integration tests")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to reach test database")

	migrateOnce.Do(func() {
		migrateErr = postgres.RunMigrations(ctx, db, nil, "up")
	})
	require.NoError(t, migrateErr, "failed to migrate test database")

	return db
}
