package statstore

import (
	"path/filepath"
	"testing"

	"github.com/zen-systems/quorum/pkg/registry"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	defer store.Close()

	want := testSnapshot()
	if err := store.Save(want); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("loaded %d backends, want %d", len(got), len(want))
	}
	stats := got["claude"]["technical"]
	if stats.SuccessRate != 0.9 || stats.SampleCount != 14 {
		t.Fatalf("round-trip mangled stats: %+v", stats)
	}
}

func TestSQLiteStoreEmptyDatabase(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("fresh database yielded entries: %v", snap)
	}
}

func TestSQLiteStoreSaveReplaces(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	defer store.Close()

	if err := store.Save(testSnapshot()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := store.Save(registry.Snapshot{"only": {"general": {SampleCount: 1}}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got["only"]["general"].SampleCount != 1 {
		t.Fatalf("save did not replace prior rows: %v", got)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Fatalf("empty path accepted")
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	if err := store.Save(testSnapshot()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load()
	if err != nil {
		t.Fatalf("load after reopen failed: %v", err)
	}
	if got["gpt"]["creative"].SampleCount != 7 {
		t.Fatalf("statistics lost across reopen: %v", got)
	}
}
