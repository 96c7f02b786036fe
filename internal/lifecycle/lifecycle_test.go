package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openclaw/hybridmem/internal/factstore"
	"github.com/openclaw/hybridmem/internal/store"
)

func newTestFactStore(t *testing.T) *factstore.FactStore {
	t.Helper()
	idx, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "facts.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	fs, err := factstore.New(factstore.Deps{Index: idx})
	if err != nil {
		t.Fatalf("new factstore: %v", err)
	}
	return fs
}

func TestSchedulerStartStopIsClean(t *testing.T) {
	fs := newTestFactStore(t)
	s := New(fs, Hooks{})
	s.Start(context.Background())
	s.Stop()
}

func TestSchedulerSurvivesPanickingHook(t *testing.T) {
	fs := newTestFactStore(t)
	var calls int32

	s := New(fs, Hooks{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	s.runTimer(ctx, "panicking", 5*time.Millisecond, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		if atomic.LoadInt32(&calls) == 1 {
			panic("simulated timer panic")
		}
		close2(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never recovered from panic and ran again")
	}
	cancel()
	s.wg.Wait()
}

func TestRunOnceLogsTaskError(t *testing.T) {
	fs := newTestFactStore(t)
	s := New(fs, Hooks{})
	s.runOnce(context.Background(), "always_fails", func(context.Context) error {
		return errors.New("boom")
	})
}

// TestPruneAndDecayRunsCheckpointAndReconcilePasses confirms the hourly
// maintenance task exercises checkpoint pruning and vector reconciliation
// alongside the original prune/decay work, even when no vector index is
// configured (newTestFactStore wires only Index, matching the nil-vec path
// FactStore.ReconcileVectorOrphans guards against).
func TestPruneAndDecayRunsCheckpointAndReconcilePasses(t *testing.T) {
	fs := newTestFactStore(t)
	if _, err := fs.SaveCheckpoint(&store.Checkpoint{
		ID:      "stale",
		Intent:  "x",
		State:   "y",
		SavedAt: time.Now().Add(-5 * time.Hour),
	}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	s := New(fs, Hooks{})
	if err := s.pruneAndDecay(context.Background()); err != nil {
		t.Fatalf("pruneAndDecay: %v", err)
	}

	if _, err := fs.GetCheckpoint("stale"); err != store.ErrNotFound {
		t.Errorf("expected stale checkpoint pruned by pruneAndDecay, err = %v", err)
	}
}

// TestHooksFireOnTheirOwnTimers drives each of the three pluggable hooks
// directly through runTimer with a 5ms interval (the real intervals are
// 24h/7d/1h and can't be waited on in a test) and checks that each fires at
// least once. Start itself is not called.
func TestHooksFireOnTheirOwnTimers(t *testing.T) {
	fs := newTestFactStore(t)
	var classifyCalls, rebuildCalls, sweepCalls int32

	hooks := Hooks{
		ClassifyOtherFacts: func(ctx context.Context, n int) error {
			atomic.AddInt32(&classifyCalls, 1)
			return nil
		},
		RebuildKeywords: func(ctx context.Context) error {
			atomic.AddInt32(&rebuildCalls, 1)
			return nil
		},
		SweepProposals: func(ctx context.Context) error {
			atomic.AddInt32(&sweepCalls, 1)
			return nil
		},
	}
	s := New(fs, hooks)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.runTimer(ctx, "classify", 5*time.Millisecond, func(ctx context.Context) error {
		return hooks.ClassifyOtherFacts(ctx, batchSize)
	})
	s.runTimer(ctx, "rebuild", 5*time.Millisecond, hooks.RebuildKeywords)
	s.runTimer(ctx, "sweep", 5*time.Millisecond, hooks.SweepProposals)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&classifyCalls) == 0 || atomic.LoadInt32(&rebuildCalls) == 0 || atomic.LoadInt32(&sweepCalls) == 0 {
		select {
		case <-deadline:
			t.Fatalf("hooks did not all fire: classify=%d rebuild=%d sweep=%d",
				atomic.LoadInt32(&classifyCalls), atomic.LoadInt32(&rebuildCalls), atomic.LoadInt32(&sweepCalls))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	s.wg.Wait()
}

// close2 closes done at most once, guarding against the hook firing more
// than twice during the test's timeout window.
func close2(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}
