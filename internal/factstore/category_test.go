package factstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openclaw/hybridmem/internal/store"
)

func TestStoreRegistersNewCategoryAndWritesSnapshot(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "discovered-categories.json")
	fs := newTestStore(t, Deps{DiscoveredCategoriesPath: snapshotPath})

	if _, err := fs.Store(context.Background(), StoreArgs{Text: "plays league of legends", Category: "hobby"}); err != nil {
		t.Fatalf("store: %v", err)
	}

	known, err := fs.idx.IsKnownCategory("hobby")
	if err != nil {
		t.Fatalf("is known category: %v", err)
	}
	if !known {
		t.Fatal("expected hobby to be registered on first use")
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "hobby") {
		t.Errorf("snapshot = %s, want it to contain %q", data, "hobby")
	}
}

func TestStoreKnownDefaultCategorySkipsRegistration(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "discovered-categories.json")
	fs := newTestStore(t, Deps{DiscoveredCategoriesPath: snapshotPath})

	known, err := fs.idx.IsKnownCategory(store.CategoryFact)
	if err != nil {
		t.Fatalf("is known category: %v", err)
	}
	if !known {
		t.Fatal("expected the built-in fact category to be seeded at schema creation")
	}

	if _, err := fs.Store(context.Background(), StoreArgs{Text: "the sky is blue", Category: store.CategoryFact}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := os.Stat(snapshotPath); !os.IsNotExist(err) {
		t.Errorf("snapshot stat err = %v, want not-exist (known category needs no registration)", err)
	}
}

func TestReconcileVectorOrphansDeletesUnmatchedVectors(t *testing.T) {
	fs := newTestStore(t, Deps{})

	if err := fs.vec.Upsert("orphan-id", []float32{1, 0, 0, 0}, store.CategoryFact, 0.5); err != nil {
		t.Fatalf("upsert orphan: %v", err)
	}
	f, err := fs.Store(context.Background(), StoreArgs{Text: "a fact with a real vector row", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := fs.vec.Upsert(f.ID, []float32{0, 1, 0, 0}, store.CategoryFact, 0.5); err != nil {
		t.Fatalf("upsert real: %v", err)
	}

	removed, err := fs.ReconcileVectorOrphans()
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if fs.vec.Count() != 1 {
		t.Errorf("vec.Count() = %d, want 1 (orphan removed, real row kept)", fs.vec.Count())
	}
}
