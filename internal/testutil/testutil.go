// Package testutil provides shared test helpers for setting up draft
// directories and script databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/vssflow/internal/scriptstore"
	"github.com/starford/vssflow/internal/storage"
)

// TestDB creates a temporary SQLite script store that is automatically cleaned up.
func TestDB(t *testing.T) *scriptstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vssflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := scriptstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDrafts creates a temporary drafts directory with a storage.Provider.
func TestDrafts(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
