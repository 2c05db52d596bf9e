// Package storetest provides a temporary, schema-applied SQLite store for
// repo and engine tests, adapted from internal/testutil's temp-database
// helper.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/memexhq/memex/internal/storage"
)

// NewStore opens a fresh store backed by a temp-dir SQLite file, with the
// schema already applied, and registers t.Cleanup to close it.
func NewStore(t *testing.T) *storage.Store {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
