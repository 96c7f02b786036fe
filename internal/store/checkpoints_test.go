package store

import (
	"testing"
	"time"
)

func TestInsertAndGetCheckpoint(t *testing.T) {
	idx := openTestIndex(t)

	c := &Checkpoint{
		ID:           "c1",
		Intent:       "refactor retrieval scoring",
		State:        "mid-edit on pipeline.go",
		WorkingFiles: []string{"internal/retrieval/pipeline.go"},
		SavedAt:      time.Now(),
	}
	if err := idx.InsertCheckpoint(c); err != nil {
		t.Fatalf("insert checkpoint: %v", err)
	}

	got, err := idx.GetCheckpoint("c1")
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if got.Intent != c.Intent || len(got.WorkingFiles) != 1 {
		t.Errorf("got = %+v, want matching intent+files", got)
	}
}

func TestGetCheckpointNotFound(t *testing.T) {
	idx := openTestIndex(t)
	if _, err := idx.GetCheckpoint("missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPruneExpiredCheckpoints(t *testing.T) {
	idx := openTestIndex(t)

	old := time.Now().Add(-5 * time.Hour)
	recent := time.Now()

	if err := idx.InsertCheckpoint(&Checkpoint{ID: "old", Intent: "x", State: "y", SavedAt: old}); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := idx.InsertCheckpoint(&Checkpoint{ID: "new", Intent: "x", State: "y", SavedAt: recent}); err != nil {
		t.Fatalf("insert new: %v", err)
	}

	n, err := idx.PruneExpiredCheckpoints(4*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	if _, err := idx.GetCheckpoint("old"); err != ErrNotFound {
		t.Errorf("expected old checkpoint pruned, err = %v", err)
	}
	if _, err := idx.GetCheckpoint("new"); err != nil {
		t.Errorf("expected new checkpoint kept, err = %v", err)
	}
}
