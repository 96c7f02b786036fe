package graphstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/hybridmem/internal/store"
)

func openTestGraph(t *testing.T) (*GraphStore, *store.KeyValueIndex) {
	t.Helper()
	idx, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "facts.db")})
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return New(idx), idx
}

func insertFact(t *testing.T, idx *store.KeyValueIndex, id string) {
	t.Helper()
	now := time.Now()
	f := &store.Fact{
		ID: id, Text: "fact " + id, Category: store.CategoryFact,
		DecayClass: store.DecayStable, Tier: store.TierWarm, Scope: store.ScopeGlobal,
		CreatedAt: now, LastConfirmedAt: now, LastAccessedAt: now, ValidFrom: now,
		HashNormalized: id,
	}
	if err := idx.Insert(f, false); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

func TestStrengthenRelatedCreatesThenIncrements(t *testing.T) {
	g, idx := openTestGraph(t)
	insertFact(t, idx, "a")
	insertFact(t, idx, "b")

	if err := g.StrengthenRelated("a", "b"); err != nil {
		t.Fatalf("strengthen 1: %v", err)
	}
	link, err := idx.GetLink("a", "b", store.LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if link.Strength != 0.5 {
		t.Errorf("strength = %v, want 0.5 on first co-occurrence", link.Strength)
	}

	if err := g.StrengthenRelated("a", "b"); err != nil {
		t.Fatalf("strengthen 2: %v", err)
	}
	link, err = idx.GetLink("a", "b", store.LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if link.Strength != 0.55 {
		t.Errorf("strength = %v, want 0.55 after one Hebbian step", link.Strength)
	}
}

func TestStrengthenRelatedClampsAtOne(t *testing.T) {
	g, idx := openTestGraph(t)
	insertFact(t, idx, "a")
	insertFact(t, idx, "b")

	if err := idx.CreateLink(store.FactLink{SourceID: "a", TargetID: "b", LinkType: store.LinkRelatedTo, Strength: 0.98, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed link: %v", err)
	}

	if err := g.StrengthenRelated("a", "b"); err != nil {
		t.Fatalf("strengthen: %v", err)
	}
	link, err := idx.GetLink("a", "b", store.LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if link.Strength != 1.0 {
		t.Errorf("strength = %v, want clamped to 1.0", link.Strength)
	}
}

func TestConnectedHardCapsDepth(t *testing.T) {
	g, idx := openTestGraph(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		insertFact(t, idx, id)
	}

	now := time.Now()
	chain := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "e"}}
	for _, pair := range chain {
		if err := idx.CreateLink(store.FactLink{SourceID: pair[0], TargetID: pair[1], LinkType: store.LinkRelatedTo, Strength: 0.5, CreatedAt: now}); err != nil {
			t.Fatalf("create link: %v", err)
		}
	}

	connected, err := g.Connected([]string{"a"}, 10)
	if err != nil {
		t.Fatalf("connected: %v", err)
	}
	set := map[string]bool{}
	for _, id := range connected {
		set[id] = true
	}
	if set["e"] {
		t.Errorf("connected = %v, depth request of 10 should be hard-capped at 3", connected)
	}
	if !set["d"] {
		t.Errorf("connected = %v, want d reachable within the hard cap", connected)
	}
}
