package factstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/hybridmem/internal/llm"
	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/store"
	"github.com/openclaw/hybridmem/internal/vault"
	"github.com/openclaw/hybridmem/internal/vectorindex"
	"github.com/openclaw/hybridmem/internal/wal"
)

const (
	maxReinforcedQuotes  = 10
	maxQuoteChars        = 200
	promotedConfidence   = 0.8
	defaultPromotionStep = 2

	classifyNeighbourCount = 5
	classifyMinScore       = 0.3

	confidenceDecayFactor = 0.9
	confidenceFloor       = 0.05
)

// FactStore owns the KeyValueIndex, VectorIndex, and WriteAheadLog, and is
// the only component permitted to mutate Facts.
type FactStore struct {
	idx *store.KeyValueIndex
	vec *vectorindex.VectorIndex
	wal *wal.WriteAheadLog
	vlt *vault.Vault // nil when the vault is disabled

	embedder   llm.Embedder   // nil disables vector candidates and classification
	classifier llm.Classifier // nil disables ADD/UPDATE/DELETE/NOOP classification
	chat       llm.Chat       // nil disables auto-classification of "other"-labelled facts

	fuzzyDedupe         bool
	classifyBeforeWrite bool
	promotionThreshold  int

	// discoveredCategoriesPath, when set, is rewritten every time a new
	// category is registered (§6's .discovered-categories.json cache).
	discoveredCategoriesPath string
}

// Deps bundles FactStore's dependencies so construction stays a single call.
type Deps struct {
	Index      *store.KeyValueIndex
	Vector     *vectorindex.VectorIndex
	WAL        *wal.WriteAheadLog
	Vault      *vault.Vault
	Embedder   llm.Embedder
	Classifier llm.Classifier
	Chat       llm.Chat

	FuzzyDedupe         bool
	ClassifyBeforeWrite bool
	PromotionThreshold  int

	DiscoveredCategoriesPath string
}

// New constructs a FactStore and runs WAL recovery before returning.
func New(deps Deps) (*FactStore, error) {
	if deps.PromotionThreshold <= 0 {
		deps.PromotionThreshold = defaultPromotionStep
	}

	fs := &FactStore{
		idx: deps.Index, vec: deps.Vector, wal: deps.WAL, vlt: deps.Vault,
		embedder: deps.Embedder, classifier: deps.Classifier, chat: deps.Chat,
		fuzzyDedupe: deps.FuzzyDedupe, classifyBeforeWrite: deps.ClassifyBeforeWrite,
		promotionThreshold:       deps.PromotionThreshold,
		discoveredCategoriesPath: deps.DiscoveredCategoriesPath,
	}

	if fs.wal != nil {
		if err := fs.Recover(time.Now()); err != nil {
			return nil, fmt.Errorf("factstore: recovery: %w", err)
		}
	}

	return fs, nil
}

// walPayload is the JSON shape persisted inside a WAL record's payload, and
// is what Recover replays against the KeyValueIndex/VectorIndex.
type walPayload struct {
	Fact *store.Fact `json:"fact"`
}

// Recover replays pending WAL records younger than the log's configured
// max_age, idempotently re-applying the KV-then-vector half of a compound
// write for any record whose fact is not already durable.
func (fs *FactStore) Recover(now time.Time) error {
	timer := logging.StartTimer(logging.CategoryStore, "Recover")
	defer timer.Stop()

	pending, err := fs.wal.PendingReplay(now)
	if err != nil {
		return fmt.Errorf("read pending wal records: %w", err)
	}

	for _, rec := range pending {
		var payload walPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil || payload.Fact == nil {
			logging.StoreWarn("wal: skipping unreadable record %s: %v", rec.ID, err)
			continue
		}

		if _, err := fs.idx.Get(payload.Fact.ID, store.GetOptions{}); err == store.ErrNotFound {
			if err := fs.idx.Insert(payload.Fact, false); err != nil {
				logging.StoreError("wal recovery: insert %s failed: %v", payload.Fact.ID, err)
				continue
			}
		} else if err != nil {
			logging.StoreError("wal recovery: lookup %s failed: %v", payload.Fact.ID, err)
			continue
		}

		if fs.vec != nil && len(rec.Embedding) > 0 {
			if err := fs.vec.Upsert(payload.Fact.ID, rec.Embedding, payload.Fact.Category, payload.Fact.Importance); err != nil {
				logging.StoreError("wal recovery: vector upsert %s failed: %v", payload.Fact.ID, err)
			}
		}

		if err := fs.wal.Tombstone(rec.ID); err != nil {
			logging.StoreWarn("wal recovery: tombstone %s failed: %v", rec.ID, err)
		}
	}

	if len(pending) > 0 {
		logging.Store("wal recovery replayed %d record(s)", len(pending))
		if err := fs.wal.Compact(now); err != nil {
			logging.StoreWarn("wal compaction after recovery failed: %v", err)
		}
	}
	return nil
}

// Store persists a new fact, or applies the decision of classification when
// enabled: ADD inserts, NOOP returns the matched fact unchanged, DELETE
// supersedes the matched fact with no new insert (a retraction), and UPDATE
// inserts the new fact and supersedes the matched one.
func (fs *FactStore) Store(ctx context.Context, args StoreArgs) (*store.Fact, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Store")
	defer timer.Stop()

	now := time.Now()
	hash := normalizeHash(args.Text)

	if fs.fuzzyDedupe {
		if existing, err := fs.idx.FindByHash(hash); err == nil {
			return nil, fmt.Errorf("%w: existing id %s", store.ErrDuplicate, existing.ID)
		} else if err != store.ErrNotFound {
			return nil, fmt.Errorf("dedupe check: %w", err)
		}
	}

	text := args.Text
	credentialLike := isCredentialLike(args)
	if credentialLike && fs.vlt != nil {
		service, credType, secret, ok := parseCredentialPayload(args)
		if !ok {
			return nil, fmt.Errorf("factstore: credential-like payload refused: cannot parse {service, type, secret}")
		}
		if err := fs.vlt.Store(service, credType, secret); err != nil {
			return nil, fmt.Errorf("factstore: vault store: %w", err)
		}
		text = vault.PointerText(service)
	}

	var embedding []float32
	if fs.embedder != nil {
		vec, err := fs.embedder.Embed(ctx, args.Text)
		if err != nil {
			logging.StoreWarn("embed failed, falling back to conservative ADD: %v", err)
		} else {
			embedding = vec
		}
	}

	if fs.classifyBeforeWrite && fs.classifier != nil && embedding != nil {
		result, err := fs.classify(ctx, args.Text, embedding)
		if err != nil {
			logging.StoreWarn("classification failed, falling back to ADD: %v", err)
		} else {
			switch result.Action {
			case llm.ActionNoop:
				existing, err := fs.idx.Get(result.TargetID, store.GetOptions{})
				if err != nil {
					logging.StoreWarn("classifier NOOP target %s not found, falling back to ADD: %v", result.TargetID, err)
					break
				}
				return existing, nil
			case llm.ActionDelete:
				if err := fs.Supersede(result.TargetID, ""); err != nil {
					return nil, fmt.Errorf("factstore: classifier DELETE supersede: %w", err)
				}
				return fs.idx.Get(result.TargetID, store.GetOptions{AsOf: &now})
			case llm.ActionUpdate:
				newFact, err := fs.insert(args, text, hash, embedding, now)
				if err != nil {
					return nil, err
				}
				if err := fs.Supersede(result.TargetID, newFact.ID); err != nil {
					return nil, fmt.Errorf("factstore: classifier UPDATE supersede: %w", err)
				}
				return newFact, nil
			case llm.ActionAdd:
				// fall through to the normal insert path below.
			}
		}
	}

	return fs.insert(args, text, hash, embedding, now)
}

// classify fetches up to classifyNeighbourCount nearest neighbours and asks
// the Classifier which action applies.
func (fs *FactStore) classify(ctx context.Context, candidateText string, embedding []float32) (llm.ClassifyResult, error) {
	matches, err := fs.vec.Search(embedding, classifyNeighbourCount, classifyMinScore)
	if err != nil {
		return llm.ClassifyResult{}, fmt.Errorf("neighbour search: %w", err)
	}

	neighbours := make([]llm.Neighbour, 0, len(matches))
	for _, m := range matches {
		f, err := fs.idx.Get(m.ID, store.GetOptions{})
		if err != nil {
			continue
		}
		neighbours = append(neighbours, llm.Neighbour{ID: f.ID, Text: f.Text, Score: m.Cosine})
	}

	return fs.classifier.Classify(ctx, candidateText, neighbours)
}

// insert performs the durable WAL-protected compound write: WAL append,
// fsync, KV insert, vector upsert, WAL tombstone.
func (fs *FactStore) insert(args StoreArgs, text, hash string, embedding []float32, now time.Time) (*store.Fact, error) {
	decayClass := store.DecayClass(args.DecayClass)
	if decayClass == "" {
		decayClass = store.DecayActive
	}

	scope := store.Scope(args.Scope)
	if scope == "" {
		scope = store.ScopeGlobal
	}

	var expiresAt *time.Time
	if ttl := store.DecayClassTTL(decayClass); ttl > 0 {
		e := now.Add(ttl)
		expiresAt = &e
	}

	f := &store.Fact{
		ID:              uuid.NewString(),
		Text:            text,
		Summary:         args.Summary,
		Category:        args.Category,
		Discovered:      args.Discovered,
		Entity:          args.Entity,
		Key:             args.Key,
		Value:           args.Value,
		Importance:      args.Importance,
		Confidence:      args.Confidence,
		DecayClass:      decayClass,
		Tier:            store.TierWarm,
		Scope:           scope,
		ScopeTarget:     args.ScopeTarget,
		Source:          args.Source,
		SourceDate:      args.SourceDate,
		CreatedAt:       now,
		LastConfirmedAt: now,
		LastAccessedAt:  now,
		ExpiresAt:       expiresAt,
		Tags:            computeTags(args.Category, args.Text, args.Tags),
		ValidFrom:       now,
		HashNormalized:  hash,
	}
	if embedding != nil {
		f.EmbeddingRef = f.ID
	}

	if err := fs.registerCategoryIfNew(f.Category, now); err != nil {
		logging.StoreWarn("category registry: %v", err)
	}

	if fs.wal != nil {
		payload, err := json.Marshal(walPayload{Fact: f})
		if err != nil {
			return nil, fmt.Errorf("marshal wal payload: %w", err)
		}
		rec := wal.Record{
			ID: uuid.NewString(), Timestamp: now, Operation: wal.OpStore,
			FactID: f.ID, HashNormalized: hash, Payload: payload, Embedding: embedding,
		}
		if err := fs.wal.Append(rec); err != nil {
			return nil, fmt.Errorf("wal append: %w", err)
		}

		if err := fs.idx.Insert(f, fs.fuzzyDedupe); err != nil {
			return nil, fmt.Errorf("kv insert: %w", err)
		}
		if fs.vec != nil && embedding != nil {
			if err := fs.vec.Upsert(f.ID, embedding, f.Category, f.Importance); err != nil {
				logging.StoreError("vector upsert failed after kv insert (wal record %s pending): %v", rec.ID, err)
				return f, nil
			}
		}
		if err := fs.wal.Tombstone(rec.ID); err != nil {
			logging.StoreWarn("wal tombstone failed: %v", err)
		}
		return f, nil
	}

	if err := fs.idx.Insert(f, fs.fuzzyDedupe); err != nil {
		return nil, fmt.Errorf("kv insert: %w", err)
	}
	if fs.vec != nil && embedding != nil {
		if err := fs.vec.Upsert(f.ID, embedding, f.Category, f.Importance); err != nil {
			logging.StoreError("vector upsert failed: %v", err)
		}
	}
	return f, nil
}

// registerCategoryIfNew adds category to the registry on first use and
// mirrors the updated set to the on-disk discovered-categories snapshot.
func (fs *FactStore) registerCategoryIfNew(category string, now time.Time) error {
	known, err := fs.idx.IsKnownCategory(category)
	if err != nil {
		return fmt.Errorf("check known category: %w", err)
	}
	if known {
		return nil
	}

	if err := fs.idx.RegisterCategory(category, now); err != nil {
		return fmt.Errorf("register category: %w", err)
	}
	if err := fs.idx.WriteDiscoveredCategoriesSnapshot(fs.discoveredCategoriesPath); err != nil {
		return fmt.Errorf("snapshot discovered categories: %w", err)
	}
	return nil
}

// ReconcileVectorOrphans walks every vector row and deletes the ones with
// no current KV counterpart, healing the crash window where a vector
// upsert commits but the WAL record was never tombstoned (§3, §5).
func (fs *FactStore) ReconcileVectorOrphans() (int, error) {
	if fs.vec == nil {
		return 0, nil
	}

	removed := 0
	for _, id := range fs.vec.IDs() {
		if _, err := fs.idx.Get(id, store.GetOptions{}); err == store.ErrNotFound {
			if err := fs.vec.Delete(id); err != nil {
				logging.StoreWarn("reconcile: delete orphan vector %s failed: %v", id, err)
				continue
			}
			removed++
		} else if err != nil {
			logging.StoreWarn("reconcile: lookup %s failed: %v", id, err)
		}
	}

	if removed > 0 {
		logging.Store("reconcile: removed %d orphaned vector row(s)", removed)
	}
	return removed, nil
}

// Supersede marks old as superseded, optionally linking it to newID via a
// SUPERSEDES edge. newID == "" is a retraction: old becomes superseded with
// no replacement.
func (fs *FactStore) Supersede(oldID, newID string) error {
	now := time.Now()
	patch := store.FactPatch{
		SupersededAt: ptrTime(&now),
		ValidTo:      ptrTime(&now),
	}
	if newID != "" {
		patch.SupersededByID = &newID
	}

	if err := fs.idx.Update(oldID, patch); err != nil {
		return fmt.Errorf("supersede %s: %w", oldID, err)
	}

	if newID != "" {
		if err := fs.idx.CreateLink(store.FactLink{
			SourceID: newID, TargetID: oldID, LinkType: store.LinkSupersedes, Strength: 1.0, CreatedAt: now,
		}); err != nil {
			logging.StoreWarn("supersedes link %s->%s failed: %v", newID, oldID, err)
		}
	}
	return nil
}

// PruneExpired hard-deletes current facts whose expires_at has passed,
// removing their vector row as well, and returns the count removed.
func (fs *FactStore) PruneExpired() (int, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "PruneExpired")
	defer timer.Stop()

	now := time.Now()
	ids, err := fs.idx.ExpiredCurrent(now)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	for _, id := range ids {
		if err := fs.idx.Delete(id); err != nil {
			logging.StoreError("prune: delete %s failed: %v", id, err)
			continue
		}
		if fs.vec != nil {
			if err := fs.vec.Delete(id); err != nil {
				logging.StoreWarn("prune: vector delete %s failed: %v", id, err)
			}
		}
	}

	logging.Lifecycle("pruned %d expired fact(s)", len(ids))
	return len(ids), nil
}

// DecayConfidence reduces confidence for facts untouched longer than their
// decay class's half-life (half of the class's TTL), returning the count
// adjusted.
func (fs *FactStore) DecayConfidence() (int, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "DecayConfidence")
	defer timer.Stop()

	now := time.Now()
	var adjusted int

	err := fs.idx.ForEachCurrent(func(f *store.Fact) error {
		ttl := store.DecayClassTTL(f.DecayClass)
		if ttl <= 0 {
			return nil // permanent facts never decay
		}
		halfLife := ttl / 2
		if now.Sub(f.LastConfirmedAt) <= halfLife {
			return nil
		}

		newConfidence := f.Confidence * confidenceDecayFactor
		if newConfidence < confidenceFloor {
			newConfidence = confidenceFloor
		}
		if newConfidence == f.Confidence {
			return nil
		}

		if err := fs.idx.Update(f.ID, store.FactPatch{Confidence: &newConfidence}); err != nil {
			logging.StoreError("decay: update %s failed: %v", f.ID, err)
			return nil
		}
		adjusted++
		return nil
	})
	if err != nil {
		return adjusted, fmt.Errorf("decay scan: %w", err)
	}

	logging.Lifecycle("decayed confidence on %d fact(s)", adjusted)
	return adjusted, nil
}

// ReinforceFact truncates quote to 200 chars, appends it (keeping the last
// 10), bumps the reinforcement counter, and promotes confidence to >= 0.8
// once the counter reaches the configured threshold.
func (fs *FactStore) ReinforceFact(id, quote string) error {
	f, err := fs.idx.Get(id, store.GetOptions{})
	if err != nil {
		return fmt.Errorf("reinforce: %w", err)
	}

	if len(quote) > maxQuoteChars {
		quote = quote[:maxQuoteChars]
	}
	quotes := append(f.ReinforcedQuotes, quote)
	if len(quotes) > maxReinforcedQuotes {
		quotes = quotes[len(quotes)-maxReinforcedQuotes:]
	}

	count := f.ReinforcedCount + 1
	now := time.Now()

	patch := store.FactPatch{
		ReinforcedCount:  &count,
		ReinforcedQuotes: &quotes,
		LastReinforcedAt: ptrTime(&now),
	}

	if count >= fs.promotionThreshold && f.Confidence < promotedConfidence {
		confidence := promotedConfidence
		patch.Confidence = &confidence
		patch.PromotedAt = ptrTime(&now)
		logging.Store("fact promoted: id=%s confidence=%.2f", id, confidence)
	}

	if err := fs.idx.Update(id, patch); err != nil {
		return fmt.Errorf("reinforce: persist %s: %w", id, err)
	}
	return nil
}

// RefreshAccessed bumps recall_count and last_accessed_at for each id; used
// by the retrieval pipeline's post-packing feedback step.
func (fs *FactStore) RefreshAccessed(ids []string) error {
	now := time.Now()
	for _, id := range ids {
		f, err := fs.idx.Get(id, store.GetOptions{})
		if err != nil {
			logging.StoreWarn("refresh_accessed: %s not found: %v", id, err)
			continue
		}
		count := f.RecallCount + 1
		if err := fs.idx.Update(id, store.FactPatch{RecallCount: &count, LastAccessedAt: &now}); err != nil {
			logging.StoreWarn("refresh_accessed: update %s failed: %v", id, err)
		}
	}
	return nil
}

// PromoteScope widens a session-scoped fact's visibility.
func (fs *FactStore) PromoteScope(id string, scope store.Scope, scopeTarget string) error {
	if scope != store.ScopeGlobal && scopeTarget == "" {
		return store.ErrScopeTargetRequired
	}
	return fs.idx.Update(id, store.FactPatch{Scope: &scope, ScopeTarget: &scopeTarget})
}

// TierCompact migrates facts between hot/warm/cold tiers per §4.9.
func (fs *FactStore) TierCompact(opts TierCompactOptions) (TierCompactResult, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "TierCompact")
	defer timer.Stop()

	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.HotMaxFacts <= 0 {
		opts.HotMaxFacts = 50
	}
	if opts.InactivePreferenceDays <= 0 {
		opts.InactivePreferenceDays = 7
	}

	var result TierCompactResult
	var hotCandidates []*store.Fact

	err := fs.idx.ForEachCurrent(func(f *store.Fact) error {
		inactiveFor := opts.Now.Sub(f.LastAccessedAt)

		switch {
		case (f.DecayClass == store.DecaySession || f.DecayClass == store.DecayCheckpoint) && inactiveFor > 24*time.Hour:
			if f.Tier != store.TierCold {
				tier := store.TierCold
				if err := fs.idx.Update(f.ID, store.FactPatch{Tier: &tier}); err == nil {
					result.MovedToCold++
				}
			}
		case f.Category == store.CategoryPreference && inactiveFor > time.Duration(opts.InactivePreferenceDays)*24*time.Hour:
			if f.Tier != store.TierWarm {
				tier := store.TierWarm
				if err := fs.idx.Update(f.ID, store.FactPatch{Tier: &tier}); err == nil {
					result.MovedToWarm++
				}
			}
		case f.Importance >= 0.8 && f.LastReinforcedAt != nil && opts.Now.Sub(*f.LastReinforcedAt) < 24*time.Hour:
			hotCandidates = append(hotCandidates, f)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("tier_compact scan: %w", err)
	}

	sortHotCandidates(hotCandidates)
	if len(hotCandidates) > opts.HotMaxFacts {
		hotCandidates = hotCandidates[:opts.HotMaxFacts]
	}
	for _, f := range hotCandidates {
		if f.Tier == store.TierHot {
			continue
		}
		tier := store.TierHot
		if err := fs.idx.Update(f.ID, store.FactPatch{Tier: &tier}); err == nil {
			result.MovedToHot++
		}
	}

	logging.Lifecycle("tier_compact: cold=%d warm=%d hot=%d", result.MovedToCold, result.MovedToWarm, result.MovedToHot)
	return result, nil
}

// sortHotCandidates orders by last_accessed_at desc, then importance desc,
// per §4.9's truncation rule.
func sortHotCandidates(facts []*store.Fact) {
	for i := 1; i < len(facts); i++ {
		for j := i; j > 0; j-- {
			a, b := facts[j-1], facts[j]
			if a.LastAccessedAt.After(b.LastAccessedAt) {
				break
			}
			if a.LastAccessedAt.Equal(b.LastAccessedAt) && a.Importance >= b.Importance {
				break
			}
			facts[j-1], facts[j] = facts[j], facts[j-1]
		}
	}
}

// Stats reports a cheap snapshot of store size, used by health checks and
// the CLI's status command.
type Stats struct {
	TotalCurrent int
	VectorCount  int
}

// GetStats returns a current snapshot of store size.
func (fs *FactStore) GetStats() (Stats, error) {
	n, err := fs.idx.Count("", "")
	if err != nil {
		return Stats{}, err
	}
	vc := 0
	if fs.vec != nil {
		vc = fs.vec.Count()
	}
	return Stats{TotalCurrent: n, VectorCount: vc}, nil
}

func ptrTime(t *time.Time) **time.Time { return &t }
