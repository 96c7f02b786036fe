// Package lifecycle implements the LifecycleScheduler: background timers
// that periodically prune, decay, and reclassify facts, rebuild keyword
// lists, and sweep expired proposals without ever taking the process down.
// Tier compaction has no timer; RunTierCompaction runs it on demand. Each timer runs its own
// recover()-guarded goroutine, grounded in the teacher's per-call panic
// isolation pattern (internal/core/api_scheduler.go's CompleteWithRetry
// wraps every external call so a panic releases its slot instead of
// propagating).
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/openclaw/hybridmem/internal/factstore"
	"github.com/openclaw/hybridmem/internal/logging"
)

const (
	pruneDecayInterval     = time.Hour
	autoClassifyInterval   = 24 * time.Hour
	keywordRebuildInterval = 7 * 24 * time.Hour
	proposalSweepInterval  = time.Hour

	// batchSize bounds how many items a timer may touch before yielding the
	// KV write lock, per the cooperative-scheduling contract.
	batchSize = 20
)

// Hooks lets callers plug in the reclassification and keyword-rebuild tasks
// without lifecycle depending on the retrieval/llm packages directly.
type Hooks struct {
	ClassifyOtherFacts func(ctx context.Context, batchSize int) error
	RebuildKeywords    func(ctx context.Context) error
	SweepProposals     func(ctx context.Context) error
}

// Scheduler owns the background timers. Stop() must be called to release
// them; a Scheduler with no timers started is a harmless zero value.
type Scheduler struct {
	facts *factstore.FactStore
	hooks Hooks

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler bound to facts; Start begins the timers.
func New(facts *factstore.FactStore, hooks Hooks) *Scheduler {
	return &Scheduler{facts: facts, hooks: hooks}
}

// Start launches the background timers. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.runTimer(ctx, "prune_and_decay", pruneDecayInterval, s.pruneAndDecay)
	if s.hooks.ClassifyOtherFacts != nil {
		s.runTimer(ctx, "auto_classify", autoClassifyInterval, func(ctx context.Context) error {
			return s.hooks.ClassifyOtherFacts(ctx, batchSize)
		})
	}
	if s.hooks.RebuildKeywords != nil {
		s.runTimer(ctx, "language_keywords_rebuild", keywordRebuildInterval, s.hooks.RebuildKeywords)
	}
	if s.hooks.SweepProposals != nil {
		s.runTimer(ctx, "proposal_sweep", proposalSweepInterval, s.hooks.SweepProposals)
	}
}

// Stop cancels every timer and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

// runTimer wraps task in a recover()-guarded goroutine driven by a
// time.Ticker, so a panic in one timer can never crash the process or stop
// other timers.
func (s *Scheduler) runTimer(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx, name, task)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, name string, task func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logging.LifecycleError("timer %q panicked: %v", name, r)
		}
	}()

	if err := task(ctx); err != nil {
		logging.LifecycleError("timer %q failed: %v", name, err)
	}
}

// pruneAndDecay is the hourly task: hard-delete expired facts, decay
// confidence on stale ones, expire ephemeral checkpoints, and heal any
// vector row left behind by a crash between the vector upsert and the WAL
// tombstone (§3, §5's reconciliation invariant).
func (s *Scheduler) pruneAndDecay(ctx context.Context) error {
	if _, err := s.facts.PruneExpired(); err != nil {
		return err
	}
	if _, err := s.facts.DecayConfidence(); err != nil {
		return err
	}
	if _, err := s.facts.PruneExpiredCheckpoints(time.Now()); err != nil {
		logging.LifecycleError("prune expired checkpoints: %v", err)
	}
	if _, err := s.facts.ReconcileVectorOrphans(); err != nil {
		logging.LifecycleError("reconcile vector orphans: %v", err)
	}
	return nil
}

// RunTierCompaction runs a single on-demand tier_compact pass. Nothing in
// the engine calls it; memory_tiering.compaction_on_session_end is not read.
func (s *Scheduler) RunTierCompaction(opts factstore.TierCompactOptions) (factstore.TierCompactResult, error) {
	return s.facts.TierCompact(opts)
}
