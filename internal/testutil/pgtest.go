// Package testutil holds shared harness code for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// domainTables are truncated between tests. Goose's version table is
// deliberately left alone so migrations stay applied.
var domainTables = []string{
	"scored_events",
	"login_attempts",
	"transfer_events",
	"trust_states",
	"audit_batches",
}

// PGTest connects to the database named by POSTGRES_URL, migrates it up,
// and returns the handle plus a cleanup that empties the domain tables.
// Tests are skipped when POSTGRES_URL is unset, so the unit suite runs
// without a database.
//
//	db, cleanup := testutil.PGTest(t)
//	defer cleanup()
func PGTest(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("pgtest: open: %v", err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: connect: %v", err)
	}

	if err := migrateUp(ctx, db, findMigrationsDir(t)); err != nil {
		_ = db.Close()
		t.Fatalf("pgtest: migrate: %v", err)
	}

	return db, func() {
		// Best effort: a failed truncate surfaces as dirty state in the
		// next test, which is louder than an error here.
		stmt := "TRUNCATE " + strings.Join(domainTables, ", ") + " CASCADE"
		_, _ = db.ExecContext(ctx, stmt)
		_ = db.Close()
	}
}

// migrateUp applies all pending goose migrations. Goose records applied
// versions itself, so calling this from every test is cheap.
func migrateUp(ctx context.Context, db *sql.DB, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}

// findMigrationsDir walks up from the package under test to the
// repository's migrations directory.
func findMigrationsDir(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("pgtest: getwd: %v", err)
	}
	for {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("pgtest: no migrations/ directory above the working directory")
		}
		dir = parent
	}
}
