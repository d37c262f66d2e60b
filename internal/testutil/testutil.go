// Package testutil provides shared test helpers for setting up vaults,
// databases, and graph engines.
package testutil

import (
	"os"
	"testing"

	"github.com/dverna/wisp/internal/engine"
	"github.com/dverna/wisp/internal/index"
	"github.com/dverna/wisp/internal/layout"
	"github.com/dverna/wisp/internal/storage"
	"github.com/dverna/wisp/internal/viewport"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wisp-test-*.db")
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

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestEngine creates a graph engine with a fixed seed so placements
// are reproducible across runs.
func TestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(layout.Config{Seed: 42}, viewport.Config{})
}

// SeedVault writes the given identity -> content notes into the store
// and feeds them to the engine.
func SeedVault(t *testing.T, store storage.Provider, eng *engine.Engine, notes map[string]string) {
	t.Helper()
	for identity, content := range notes {
		if err := store.Write(identity, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", identity, err)
		}
		if _, err := eng.UpsertNote(identity, content); err != nil {
			t.Fatalf("upsert %s: %v", identity, err)
		}
	}
}
