package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

const factColumns = `id, text, summary, category, discovered, entity, key, value,
	importance, confidence, decay_class, tier, scope, scope_target,
	source, source_date, created_at, last_confirmed_at, last_accessed_at, expires_at,
	tags, recall_count, reinforced_count, reinforced_quotes, last_reinforced_at, promoted_at,
	supersedes_id, superseded_by_id, superseded_at, valid_from, valid_to,
	hash_normalized, embedding_ref`

// Insert persists a new fact. It fails with ErrDuplicate if fuzzyDedupe is
// true and hash_normalized already matches a current fact.
func (k *KeyValueIndex) Insert(f *Fact, fuzzyDedupe bool) error {
	timer := logging.StartTimer(logging.CategoryStore, "Insert")
	defer timer.Stop()

	if f.Scope != ScopeGlobal && f.ScopeTarget == "" {
		return ErrScopeTargetRequired
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if fuzzyDedupe {
		var existing string
		err := k.db.QueryRow(
			`SELECT id FROM facts WHERE hash_normalized = ? AND superseded_at IS NULL LIMIT 1`,
			f.HashNormalized,
		).Scan(&existing)
		if err == nil {
			return fmt.Errorf("%w: existing id %s", ErrDuplicate, existing)
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("dedupe check: %w", err)
		}
	}

	tagsJSON, _ := json.Marshal(f.Tags)
	quotesJSON, _ := json.Marshal(f.ReinforcedQuotes)

	_, err := k.db.Exec(
		`INSERT INTO facts (`+factColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.Text, nullStr(f.Summary), f.Category, boolToInt(f.Discovered), nullStr(f.Entity), nullStr(f.Key), nullStr(f.Value),
		f.Importance, f.Confidence, string(f.DecayClass), string(f.Tier), string(f.Scope), nullStr(f.ScopeTarget),
		nullStr(f.Source), nullTime(f.SourceDate), f.CreatedAt, f.LastConfirmedAt, f.LastAccessedAt, nullTime(f.ExpiresAt),
		string(tagsJSON), f.RecallCount, f.ReinforcedCount, string(quotesJSON), nullTime(f.LastReinforcedAt), nullTime(f.PromotedAt),
		nullStr(f.SupersedesID), nullStr(f.SupersededByID), nullTime(f.SupersededAt), f.ValidFrom, nullTime(f.ValidTo),
		f.HashNormalized, nullStr(f.EmbeddingRef),
	)
	if err != nil {
		return fmt.Errorf("insert fact: %w", err)
	}

	if err := k.indexTokens(k.db, f.ID, f.Text); err != nil {
		logging.StoreWarn("fts indexing failed for %s: %v", f.ID, err)
	}

	logging.StoreDebug("fact inserted: id=%s category=%s", f.ID, f.Category)
	return nil
}

// Get retrieves a fact by id, honouring temporal and scope predicates.
// Returns ErrNotFound if no row matches.
func (k *KeyValueIndex) Get(id string, opts GetOptions) (*Fact, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	row := k.db.QueryRow(`SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get fact: %w", err)
	}

	now := time.Now()
	if opts.AsOf != nil {
		asOf := *opts.AsOf
		validTo := time.Unix(1<<62, 0)
		if f.ValidTo != nil {
			validTo = *f.ValidTo
		}
		if asOf.Before(f.ValidFrom) || asOf.After(validTo) {
			return nil, ErrNotFound
		}
	} else if !f.IsCurrent(now) {
		// without as_of, non-current facts are returned as well.
	}

	if opts.ScopeFilter != nil && f.Scope != ScopeGlobal {
		if f.Scope != opts.ScopeFilter.Scope || f.ScopeTarget != opts.ScopeFilter.Target {
			return nil, ErrNotFound
		}
	}

	return f, nil
}

// FindByHash returns the current fact matching hashNormalized, or
// ErrNotFound. Used to run fuzzy dedupe ahead of classification, which is
// only invoked on a miss.
func (k *KeyValueIndex) FindByHash(hashNormalized string) (*Fact, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var id string
	err := k.db.QueryRow(
		`SELECT id FROM facts WHERE hash_normalized = ? AND superseded_at IS NULL LIMIT 1`,
		hashNormalized,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}

	return k.getUnlocked(id)
}

// Update applies a partial patch to a fact's mutable fields.
func (k *KeyValueIndex) Update(id string, patch FactPatch) error {
	timer := logging.StartTimer(logging.CategoryStore, "Update")
	defer timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()

	sets := []string{}
	args := []interface{}{}

	add := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if patch.Tier != nil {
		add("tier", string(*patch.Tier))
	}
	if patch.Confidence != nil {
		add("confidence", *patch.Confidence)
	}
	if patch.ExpiresAt != nil {
		add("expires_at", nullTime(*patch.ExpiresAt))
	}
	if patch.RecallCount != nil {
		add("recall_count", *patch.RecallCount)
	}
	if patch.LastAccessedAt != nil {
		add("last_accessed_at", *patch.LastAccessedAt)
	}
	if patch.ReinforcedCount != nil {
		add("reinforced_count", *patch.ReinforcedCount)
	}
	if patch.ReinforcedQuotes != nil {
		qJSON, _ := json.Marshal(*patch.ReinforcedQuotes)
		add("reinforced_quotes", string(qJSON))
	}
	if patch.LastReinforcedAt != nil {
		add("last_reinforced_at", nullTime(*patch.LastReinforcedAt))
	}
	if patch.PromotedAt != nil {
		add("promoted_at", nullTime(*patch.PromotedAt))
	}
	if patch.SupersedesID != nil {
		add("supersedes_id", nullStr(*patch.SupersedesID))
	}
	if patch.SupersededByID != nil {
		add("superseded_by_id", nullStr(*patch.SupersededByID))
	}
	if patch.SupersededAt != nil {
		add("superseded_at", nullTime(*patch.SupersededAt))
	}
	if patch.ValidFrom != nil {
		add("valid_from", *patch.ValidFrom)
	}
	if patch.ValidTo != nil {
		add("valid_to", nullTime(*patch.ValidTo))
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Discovered != nil {
		add("discovered", boolToInt(*patch.Discovered))
	}
	if patch.Scope != nil {
		add("scope", string(*patch.Scope))
	}
	if patch.ScopeTarget != nil {
		add("scope_target", nullStr(*patch.ScopeTarget))
	}
	if patch.EmbeddingRef != nil {
		add("embedding_ref", nullStr(*patch.EmbeddingRef))
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE facts SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := k.db.Exec(query, args...); err != nil {
		return fmt.Errorf("update fact %s: %w", id, err)
	}
	return nil
}

// Delete hard-deletes a fact row (used by prune_expired).
func (k *KeyValueIndex) Delete(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, err := k.db.Exec(`DELETE FROM facts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete fact %s: %w", id, err)
	}
	if _, err := k.db.Exec(`DELETE FROM fts_tokens WHERE fact_id = ?`, id); err != nil {
		logging.StoreWarn("failed to clean fts tokens for %s: %v", id, err)
	}
	return nil
}

// ExpiredCurrent returns ids of current facts whose expires_at < now.
func (k *KeyValueIndex) ExpiredCurrent(now time.Time) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	rows, err := k.db.Query(
		`SELECT id FROM facts WHERE superseded_at IS NULL AND expires_at IS NOT NULL AND expires_at < ?`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ForEachCurrent invokes fn for every current fact, used by decay/tiering
// passes that need a full table scan in batches.
func (k *KeyValueIndex) ForEachCurrent(fn func(*Fact) error) error {
	k.mu.RLock()
	rows, err := k.db.Query(`SELECT ` + factColumns + ` FROM facts WHERE superseded_at IS NULL`)
	if err != nil {
		k.mu.RUnlock()
		return fmt.Errorf("query current facts: %w", err)
	}

	var facts []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			continue
		}
		facts = append(facts, f)
	}
	rows.Close()
	k.mu.RUnlock()

	for _, f := range facts {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFact(row scanner) (*Fact, error) {
	var f Fact
	var summary, entity, key, value, scopeTarget, source, supersedesID, supersededByID, embeddingRef sql.NullString
	var sourceDate, expiresAt, lastReinforcedAt, promotedAt, supersededAt, validTo sql.NullTime
	var tagsJSON, quotesJSON string
	var decayClass, tier, scopeStr string
	var discoveredInt int

	err := row.Scan(
		&f.ID, &f.Text, &summary, &f.Category, &discoveredInt, &entity, &key, &value,
		&f.Importance, &f.Confidence, &decayClass, &tier, &scopeStr, &scopeTarget,
		&source, &sourceDate, &f.CreatedAt, &f.LastConfirmedAt, &f.LastAccessedAt, &expiresAt,
		&tagsJSON, &f.RecallCount, &f.ReinforcedCount, &quotesJSON, &lastReinforcedAt, &promotedAt,
		&supersedesID, &supersededByID, &supersededAt, &f.ValidFrom, &validTo,
		&f.HashNormalized, &embeddingRef,
	)
	if err != nil {
		return nil, err
	}

	f.Summary = summary.String
	f.Entity = entity.String
	f.Key = key.String
	f.Value = value.String
	f.ScopeTarget = scopeTarget.String
	f.Source = source.String
	f.SupersedesID = supersedesID.String
	f.SupersededByID = supersededByID.String
	f.EmbeddingRef = embeddingRef.String
	f.Discovered = discoveredInt != 0
	f.DecayClass = DecayClass(decayClass)
	f.Tier = Tier(tier)
	f.Scope = Scope(scopeStr)

	if sourceDate.Valid {
		f.SourceDate = &sourceDate.Time
	}
	if expiresAt.Valid {
		f.ExpiresAt = &expiresAt.Time
	}
	if lastReinforcedAt.Valid {
		f.LastReinforcedAt = &lastReinforcedAt.Time
	}
	if promotedAt.Valid {
		f.PromotedAt = &promotedAt.Time
	}
	if supersededAt.Valid {
		f.SupersededAt = &supersededAt.Time
	}
	if validTo.Valid {
		f.ValidTo = &validTo.Time
	}

	_ = json.Unmarshal([]byte(tagsJSON), &f.Tags)
	_ = json.Unmarshal([]byte(quotesJSON), &f.ReinforcedQuotes)

	return &f, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
