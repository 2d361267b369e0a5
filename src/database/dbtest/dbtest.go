// Package dbtest opens migrated throwaway sqlite stores for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/username/capitolwatch/backend/src/database"
)

// New returns a migrated store in a temp directory, closed on cleanup.
func New(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "capitolwatch_test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
