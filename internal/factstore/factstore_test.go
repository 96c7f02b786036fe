package factstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/hybridmem/internal/llm"
	"github.com/openclaw/hybridmem/internal/store"
	"github.com/openclaw/hybridmem/internal/vault"
	"github.com/openclaw/hybridmem/internal/vectorindex"
	"github.com/openclaw/hybridmem/internal/wal"
)

// fakeEmbedder returns a deterministic unit vector derived from text length,
// just enough to exercise the classify-before-write and vector-search paths.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[len(text)%f.dim] = 1
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f fakeEmbedder) Dimensions() int { return f.dim }
func (f fakeEmbedder) Name() string    { return "fake" }

// fakeClassifier always returns a fixed result, settable per test.
type fakeClassifier struct{ result llm.ClassifyResult }

func (f fakeClassifier) Classify(ctx context.Context, candidate string, neighbours []llm.Neighbour) (llm.ClassifyResult, error) {
	return f.result, nil
}

func newTestStore(t *testing.T, deps Deps) *FactStore {
	t.Helper()
	dir := t.TempDir()

	idx, err := store.Open(store.Options{Path: filepath.Join(dir, "facts.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	vec, err := vectorindex.Open(vectorindex.Options{Path: filepath.Join(dir, "vectors.db"), Dimension: 4})
	if err != nil {
		t.Fatalf("open vectorindex: %v", err)
	}
	t.Cleanup(func() { vec.Close() })

	w, err := wal.Open(wal.Options{Path: filepath.Join(dir, "memory.wal"), MaxAge: 5 * time.Minute})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	deps.Index, deps.Vector, deps.WAL = idx, vec, w

	fs, err := New(deps)
	if err != nil {
		t.Fatalf("new factstore: %v", err)
	}
	return fs
}

func TestStoreInsertsFact(t *testing.T) {
	fs := newTestStore(t, Deps{FuzzyDedupe: true})

	f, err := fs.Store(context.Background(), StoreArgs{
		Text: "the user prefers dark mode", Category: store.CategoryPreference, Importance: 0.6, Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if f.ID == "" || f.HashNormalized == "" {
		t.Fatalf("fact missing id/hash: %+v", f)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get back: %v", err)
	}
	if got.Text != f.Text {
		t.Errorf("text = %q, want %q", got.Text, f.Text)
	}
}

func TestStoreFuzzyDedupeRejectsDuplicate(t *testing.T) {
	fs := newTestStore(t, Deps{FuzzyDedupe: true})
	ctx := context.Background()

	if _, err := fs.Store(ctx, StoreArgs{Text: "  The   Café  is  closed", Category: store.CategoryFact}); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if _, err := fs.Store(ctx, StoreArgs{Text: "the cafe is closed", Category: store.CategoryFact}); err == nil {
		t.Fatal("expected duplicate rejection for diacritic/whitespace-folded match")
	}
}

func TestStoreCredentialLikeRedirectsToVault(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.Open(vault.Options{Path: filepath.Join(dir, "credentials.db"), Passphrase: "this-is-a-long-enough-passphrase"})
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })

	fs := newTestStore(t, Deps{Vault: v, FuzzyDedupe: true})

	f, err := fs.Store(context.Background(), StoreArgs{
		Text: "api_key for github", Category: store.CategoryOther,
		Entity: "github", Key: "api_key", Value: "sk-secret-value",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if f.Text != "vault:github" {
		t.Errorf("text = %q, want pointer text vault:github", f.Text)
	}

	cred, err := v.Get("github", "api_key")
	if err != nil {
		t.Fatalf("vault get: %v", err)
	}
	if cred.Secret != "sk-secret-value" {
		t.Errorf("secret = %q, want sk-secret-value", cred.Secret)
	}
}

func TestStoreCredentialLikeWithoutServiceRefused(t *testing.T) {
	dir := t.TempDir()
	v, err := vault.Open(vault.Options{Path: filepath.Join(dir, "credentials.db"), Passphrase: "this-is-a-long-enough-passphrase"})
	if err != nil {
		t.Fatalf("open vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })

	fs := newTestStore(t, Deps{Vault: v})

	_, err = fs.Store(context.Background(), StoreArgs{Text: "my api_key is somewhere", Category: store.CategoryOther})
	if err == nil {
		t.Fatal("expected refusal for credential-like text lacking entity/value")
	}
}

func TestStoreClassifyNoopReturnsExisting(t *testing.T) {
	fs := newTestStore(t, Deps{
		Embedder:            fakeEmbedder{dim: 4},
		Classifier:          nil, // set below once we know the existing id
		ClassifyBeforeWrite: true,
	})

	existing, err := fs.Store(context.Background(), StoreArgs{Text: "first fact", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}

	fs.classifier = fakeClassifier{result: llm.ClassifyResult{Action: llm.ActionNoop, TargetID: existing.ID}}

	got, err := fs.Store(context.Background(), StoreArgs{Text: "a rephrasing of the first fact", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("got id %s, want existing id %s (NOOP)", got.ID, existing.ID)
	}
}

func TestStoreClassifyUpdateSupersedesTarget(t *testing.T) {
	fs := newTestStore(t, Deps{Embedder: fakeEmbedder{dim: 4}, ClassifyBeforeWrite: true})

	old, err := fs.Store(context.Background(), StoreArgs{Text: "likes tea", Category: store.CategoryPreference})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	fs.classifier = fakeClassifier{result: llm.ClassifyResult{Action: llm.ActionUpdate, TargetID: old.ID}}

	updated, err := fs.Store(context.Background(), StoreArgs{Text: "actually prefers coffee", Category: store.CategoryPreference})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if updated.ID == old.ID {
		t.Fatal("expected a new fact id for UPDATE")
	}

	oldFact, err := fs.idx.Get(old.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if oldFact.SupersededAt == nil || oldFact.SupersededByID != updated.ID {
		t.Errorf("old fact not superseded by %s: %+v", updated.ID, oldFact)
	}
}

func TestSupersedeRetractionHasNoReplacement(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "temporary claim", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := fs.Supersede(f.ID, ""); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SupersededAt == nil || got.SupersededByID != "" {
		t.Errorf("expected retraction with no replacement, got %+v", got)
	}
}

func TestPruneExpiredRemovesExpiredFacts(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "session note", Category: store.CategoryFact, DecayClass: string(store.DecaySession)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := fs.idx.Update(f.ID, store.FactPatch{ExpiresAt: ptrTime(&past)}); err != nil {
		t.Fatalf("force expiry: %v", err)
	}

	n, err := fs.PruneExpired()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if _, err := fs.idx.Get(f.ID, store.GetOptions{}); err != store.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after prune", err)
	}
}

func TestDecayConfidenceSkipsFactsWithinHalfLife(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "stale active fact", Category: store.CategoryFact, DecayClass: string(store.DecayActive), Confidence: 0.9})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	stale := time.Now().Add(-20 * 24 * time.Hour)
	if err := fs.idx.Update(f.ID, store.FactPatch{LastAccessedAt: &stale}); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	// LastConfirmedAt isn't patchable; reinsert isn't an option, so this test
	// relies on DecayClassTTL(active) = 14 days and the fact's CreatedAt/
	// LastConfirmedAt being "now" from Store — exercise via a longer window
	// isn't possible without a patch, so assert decay is a no-op within the
	// half-life instead.
	n, err := fs.DecayConfidence()
	if err != nil {
		t.Fatalf("decay: %v", err)
	}
	if n != 0 {
		t.Errorf("decayed = %d, want 0 (fact is within its half-life)", n)
	}
}

func TestReinforceFactPromotesAtThreshold(t *testing.T) {
	fs := newTestStore(t, Deps{PromotionThreshold: 2})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "user likes vim", Category: store.CategoryPreference, Confidence: 0.4})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.ReinforceFact(f.ID, "said they like vim again"); err != nil {
		t.Fatalf("reinforce 1: %v", err)
	}
	got, _ := fs.idx.Get(f.ID, store.GetOptions{})
	if got.Confidence >= promotedConfidence {
		t.Fatalf("promoted too early: %+v", got)
	}

	if err := fs.ReinforceFact(f.ID, "confirmed vim preference a third time"); err != nil {
		t.Fatalf("reinforce 2: %v", err)
	}
	got, _ = fs.idx.Get(f.ID, store.GetOptions{})
	if got.Confidence < promotedConfidence {
		t.Errorf("confidence = %v, want >= %v after reaching threshold", got.Confidence, promotedConfidence)
	}
	if got.ReinforcedCount != 2 {
		t.Errorf("reinforced_count = %d, want 2", got.ReinforcedCount)
	}
}

func TestReinforceFactTruncatesQuoteAndCapsHistory(t *testing.T) {
	fs := newTestStore(t, Deps{PromotionThreshold: 100})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "fact to reinforce", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	longQuote := ""
	for i := 0; i < 50; i++ {
		longQuote += "0123456789"
	}
	if err := fs.ReinforceFact(f.ID, longQuote); err != nil {
		t.Fatalf("reinforce: %v", err)
	}
	first, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get after first reinforce: %v", err)
	}
	if len(first.ReinforcedQuotes) != 1 || len(first.ReinforcedQuotes[0]) != maxQuoteChars {
		t.Errorf("quotes after first reinforce = %q, want one quote of %d chars", first.ReinforcedQuotes, maxQuoteChars)
	}
	for i := 0; i < maxReinforcedQuotes+3; i++ {
		if err := fs.ReinforceFact(f.ID, "short quote"); err != nil {
			t.Fatalf("reinforce loop: %v", err)
		}
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ReinforcedQuotes) != maxReinforcedQuotes {
		t.Fatalf("len(quotes) = %d, want %d", len(got.ReinforcedQuotes), maxReinforcedQuotes)
	}
	if len(got.ReinforcedQuotes[0]) > maxQuoteChars {
		t.Errorf("first retained quote too long: %d chars", len(got.ReinforcedQuotes[0]))
	}
}

func TestRefreshAccessedBumpsCounters(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "recalled fact", Category: store.CategoryFact})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.RefreshAccessed([]string{f.ID}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RecallCount != 1 {
		t.Errorf("recall_count = %d, want 1", got.RecallCount)
	}
}

func TestPromoteScopeRequiresTargetForNonGlobal(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "session scoped fact", Category: store.CategoryFact, Scope: string(store.ScopeSession), ScopeTarget: "sess-1"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := fs.PromoteScope(f.ID, store.ScopeUser, ""); err != store.ErrScopeTargetRequired {
		t.Errorf("err = %v, want ErrScopeTargetRequired", err)
	}

	if err := fs.PromoteScope(f.ID, store.ScopeUser, "user-1"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Scope != store.ScopeUser || got.ScopeTarget != "user-1" {
		t.Errorf("got scope=%s target=%s, want user/user-1", got.Scope, got.ScopeTarget)
	}
}

func TestTierCompactMovesInactiveSessionFactsToCold(t *testing.T) {
	fs := newTestStore(t, Deps{})

	f, err := fs.Store(context.Background(), StoreArgs{Text: "session checkpoint note", Category: store.CategoryFact, DecayClass: string(store.DecaySession)})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := fs.idx.Update(f.ID, store.FactPatch{LastAccessedAt: &old}); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	result, err := fs.TierCompact(TierCompactOptions{Now: time.Now()})
	if err != nil {
		t.Fatalf("tier_compact: %v", err)
	}
	if result.MovedToCold != 1 {
		t.Fatalf("moved_to_cold = %d, want 1", result.MovedToCold)
	}

	got, err := fs.idx.Get(f.ID, store.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tier != store.TierCold {
		t.Errorf("tier = %s, want cold", got.Tier)
	}
}

func TestRecoverReplaysPendingWALRecord(t *testing.T) {
	dir := t.TempDir()

	idx, err := store.Open(store.Options{Path: filepath.Join(dir, "facts.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer idx.Close()
	vec, err := vectorindex.Open(vectorindex.Options{Path: filepath.Join(dir, "vectors.db"), Dimension: 4})
	if err != nil {
		t.Fatalf("open vectorindex: %v", err)
	}
	defer vec.Close()
	w, err := wal.Open(wal.Options{Path: filepath.Join(dir, "memory.wal"), MaxAge: 5 * time.Minute})
	if err != nil {
		t.Fatalf("open wal: %v", err)
	}

	fs, err := New(Deps{Index: idx, Vector: vec, WAL: w})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Simulate a crash mid-write: append a WAL record whose fact never made
	// it into the KV index.
	f := &store.Fact{
		ID: "crash-1", Text: "recovered fact", Category: store.CategoryFact, Tier: store.TierWarm,
		Scope: store.ScopeGlobal, CreatedAt: time.Now(), LastConfirmedAt: time.Now(), LastAccessedAt: time.Now(),
		ValidFrom: time.Now(), HashNormalized: "recovered fact",
	}
	payload, err := json.Marshal(walPayload{Fact: f})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := w.Append(wal.Record{ID: "rec-1", Timestamp: time.Now(), Operation: wal.OpStore, FactID: f.ID, HashNormalized: f.HashNormalized, Payload: payload}); err != nil {
		t.Fatalf("append: %v", err)
	}
	w.Close()

	// Reopen the WAL (simulating process restart) and recover through a
	// fresh FactStore.
	w2, err := wal.Open(wal.Options{Path: filepath.Join(dir, "memory.wal"), MaxAge: 5 * time.Minute})
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}
	defer w2.Close()

	fs2, err := New(Deps{Index: idx, Vector: vec, WAL: w2})
	if err != nil {
		t.Fatalf("new (recovery): %v", err)
	}
	_ = fs2

	got, err := idx.Get("crash-1", store.GetOptions{})
	if err != nil {
		t.Fatalf("get recovered fact: %v", err)
	}
	if got.Text != "recovered fact" {
		t.Errorf("text = %q, want recovered fact", got.Text)
	}
	_ = fs
}
