package wal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *WriteAheadLog {
	t.Helper()
	w, err := Open(Options{Path: filepath.Join(t.TempDir(), "memory.wal"), MaxAge: 5 * time.Minute})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestAppendAndReadAll(t *testing.T) {
	w := openTestLog(t)

	rec := Record{ID: "r1", Timestamp: time.Now(), Operation: OpStore, FactID: "f1", HashNormalized: "h1"}
	if err := w.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := w.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" {
		t.Errorf("records = %v, want [r1]", records)
	}
}

func TestPendingReplaySkipsTombstoned(t *testing.T) {
	w := openTestLog(t)

	now := time.Now()
	if err := w.Append(Record{ID: "r1", Timestamp: now, Operation: OpStore, FactID: "f1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Tombstone("r1"); err != nil {
		t.Fatalf("tombstone: %v", err)
	}
	if err := w.Append(Record{ID: "r2", Timestamp: now, Operation: OpStore, FactID: "f2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	pending, err := w.PendingReplay(now)
	if err != nil {
		t.Fatalf("pending replay: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r2" {
		t.Errorf("pending = %v, want [r2]", pending)
	}
}

func TestPendingReplayPrunesStaleRecords(t *testing.T) {
	w := openTestLog(t)

	old := time.Now().Add(-time.Hour)
	if err := w.Append(Record{ID: "stale", Timestamp: old, Operation: OpStore, FactID: "f1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	pending, err := w.PendingReplay(time.Now())
	if err != nil {
		t.Fatalf("pending replay: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none (stale record pruned)", pending)
	}
}

func TestPendingReplaySkipsUnsupportedOperations(t *testing.T) {
	w := openTestLog(t)
	now := time.Now()

	if err := w.Append(Record{ID: "r1", Timestamp: now, Operation: "delete", FactID: "f1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	pending, err := w.PendingReplay(now)
	if err != nil {
		t.Fatalf("pending replay: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want none (unsupported operation skipped)", pending)
	}
}

func TestCompactDropsTombstonedAndStale(t *testing.T) {
	w := openTestLog(t)
	now := time.Now()

	if err := w.Append(Record{ID: "keep", Timestamp: now, Operation: OpStore, FactID: "f1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(Record{ID: "gone", Timestamp: now.Add(-time.Hour), Operation: OpStore, FactID: "f2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := w.Compact(now); err != nil {
		t.Fatalf("compact: %v", err)
	}

	records, err := w.ReadAll()
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(records) != 1 || records[0].ID != "keep" {
		t.Errorf("records after compact = %v, want [keep]", records)
	}

	// log remains writable after compaction
	if err := w.Append(Record{ID: "after", Timestamp: now, Operation: OpStore, FactID: "f3"}); err != nil {
		t.Fatalf("append after compact: %v", err)
	}
}
