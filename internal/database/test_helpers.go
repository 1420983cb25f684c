package database

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a throwaway sqlite database under t.TempDir(). Both
// drivers share the same repository SQL apart from placeholder syntax, so
// sqlite is enough to exercise the repositories.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	config := Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "podium_test.db"),
	}

	db, err := NewDB(config)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}
