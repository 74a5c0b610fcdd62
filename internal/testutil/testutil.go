// Package testutil provides shared test helpers for setting up collections and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/noterefs/internal/index"
	"github.com/starford/noterefs/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "noterefs-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary collection directory with a file system provider.
func TestVault(t *testing.T, ignore ...string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir, ignore...)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes a note into the collection and indexes it.
func WriteNote(t *testing.T, store *storage.FS, db index.NoteIndex, rel, content string) {
	t.Helper()
	if err := store.Write(rel, []byte(content)); err != nil {
		t.Fatal(err)
	}
	if db == nil {
		return
	}
	if err := index.IndexFile(db, rel, []byte(content)); err != nil {
		t.Fatal(err)
	}
}
