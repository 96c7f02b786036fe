package store

import (
	"testing"
	"time"
)

func insertTestFacts(t *testing.T, idx *KeyValueIndex, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := idx.Insert(sampleFact(id, "fact "+id), false); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
}

func TestCreateLinkAndGetLink(t *testing.T) {
	idx := openTestIndex(t)
	insertTestFacts(t, idx, "a", "b")

	link := FactLink{SourceID: "a", TargetID: "b", LinkType: LinkRelatedTo, Strength: 0.5, CreatedAt: time.Now()}
	if err := idx.CreateLink(link); err != nil {
		t.Fatalf("create link: %v", err)
	}

	got, err := idx.GetLink("a", "b", LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if got.Strength != 0.5 {
		t.Errorf("strength = %v, want 0.5", got.Strength)
	}
}

func TestCreateLinkKeepsGreaterStrength(t *testing.T) {
	idx := openTestIndex(t)
	insertTestFacts(t, idx, "a", "b")

	if err := idx.CreateLink(FactLink{SourceID: "a", TargetID: "b", LinkType: LinkRelatedTo, Strength: 0.5, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create link 1: %v", err)
	}
	if err := idx.CreateLink(FactLink{SourceID: "a", TargetID: "b", LinkType: LinkRelatedTo, Strength: 0.3, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create link 2: %v", err)
	}

	got, err := idx.GetLink("a", "b", LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	if got.Strength != 0.5 {
		t.Errorf("strength = %v, want 0.5 (lower strength should not overwrite)", got.Strength)
	}

	if err := idx.SetLinkStrength("a", "b", LinkRelatedTo, 0.8); err != nil {
		t.Fatalf("set strength: %v", err)
	}
	got, err = idx.GetLink("a", "b", LinkRelatedTo)
	if err != nil {
		t.Fatalf("get link after set: %v", err)
	}
	if got.Strength != 0.8 {
		t.Errorf("strength = %v, want 0.8 after explicit set", got.Strength)
	}
}

func TestConnectedBFS(t *testing.T) {
	idx := openTestIndex(t)
	insertTestFacts(t, idx, "a", "b", "c", "d")

	now := time.Now()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("create link: %v", err)
		}
	}
	must(idx.CreateLink(FactLink{SourceID: "a", TargetID: "b", LinkType: LinkRelatedTo, Strength: 0.5, CreatedAt: now}))
	must(idx.CreateLink(FactLink{SourceID: "b", TargetID: "c", LinkType: LinkRelatedTo, Strength: 0.5, CreatedAt: now}))
	must(idx.CreateLink(FactLink{SourceID: "c", TargetID: "d", LinkType: LinkRelatedTo, Strength: 0.5, CreatedAt: now}))

	connected, err := idx.Connected([]string{"a"}, 2)
	if err != nil {
		t.Fatalf("connected: %v", err)
	}
	set := map[string]bool{}
	for _, id := range connected {
		set[id] = true
	}
	if !set["b"] || !set["c"] {
		t.Errorf("connected = %v, want b and c within depth 2", connected)
	}
	if set["d"] {
		t.Errorf("connected = %v, d should be beyond depth 2", connected)
	}
	if set["a"] {
		t.Errorf("connected = %v, should exclude the starting node", connected)
	}
}
