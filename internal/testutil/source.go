package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"mcs-go/internal/records"
)

// NewTestSource creates an in-memory sqlite record store with migrations applied.
// It is closed automatically when the test completes.
func NewTestSource(t *testing.T) *records.SQLiteSource {
	t.Helper()

	src, err := records.NewSQLiteSource(":memory:", FixedClock())
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	if err := src.MigrateUp(); err != nil {
		src.Close()
		t.Fatalf("failed to migrate record store: %v", err)
	}

	t.Cleanup(func() {
		src.Close()
	})
	return src
}

// WriteLocalFile writes data to dir/rel, creating parent directories, and
// returns the full path.
func WriteLocalFile(t *testing.T, dir, rel string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}
