package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/openclaw/hybridmem/internal/logging"
)

// tokenize lowercases and splits on non-letter/non-digit runes, dropping
// tokens shorter than 2 characters. It is intentionally simple and
// language-agnostic; §4.10's weekly "language keyword rebuild" task reloads
// the factstore package's auto-tag stop words, which tokenize does not use.
func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() >= 2 {
			tokens = append(tokens, b.String())
		}
		b.Reset()
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// indexTokens replaces a fact's posting-list entries. Caller must hold k.mu.
func (k *KeyValueIndex) indexTokens(tx dbExecer, factID, text string) error {
	if _, err := tx.Exec(`DELETE FROM fts_tokens WHERE fact_id = ?`, factID); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}

	freq := map[string]int{}
	for _, tok := range tokenize(text) {
		freq[tok]++
	}

	for tok, n := range freq {
		if _, err := tx.Exec(
			`INSERT INTO fts_tokens (token, fact_id, term_freq) VALUES (?, ?, ?)
			 ON CONFLICT(token, fact_id) DO UPDATE SET term_freq = excluded.term_freq`,
			tok, factID, n,
		); err != nil {
			return fmt.Errorf("index token %q: %w", tok, err)
		}
	}
	return nil
}

type dbExecer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// SearchFTS returns at most opts.Limit*3 candidate ids ranked by a simple
// term-frequency relevance score in [0,1], with opts.ReinforcementBoost
// added when a fact's reinforced_count > 0. Tier filter: cold facts are
// excluded unless opts.IncludeCold; scope filter excludes non-matching user/agent/session
// facts while always including global facts.
func (k *KeyValueIndex) SearchFTS(query string, opts SearchOptions) ([]ScoredID, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchFTS")
	defer timer.Stop()

	k.mu.RLock()
	defer k.mu.RUnlock()

	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	candidateCap := limit * 3

	placeholders := strings.Repeat("?,", len(tokens))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}

	rows, err := k.db.Query(
		fmt.Sprintf(`SELECT fact_id, SUM(term_freq) as tf, COUNT(DISTINCT token) as matched
		             FROM fts_tokens WHERE token IN (%s) GROUP BY fact_id ORDER BY matched DESC, tf DESC`, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search_fts query: %w", err)
	}

	type hit struct {
		id      string
		tf      int
		matched int
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.tf, &h.matched); err != nil {
			continue
		}
		hits = append(hits, h)
	}
	rows.Close()

	now := time.Now()
	var results []ScoredID
	for _, h := range hits {
		if len(results) >= candidateCap {
			break
		}

		f, err := k.getUnlocked(h.id)
		if err != nil {
			continue
		}
		if !f.IsCurrent(now) && !opts.IncludeSuperseded {
			continue
		}
		if f.Tier == TierCold && !opts.IncludeCold {
			continue
		}
		if !scopeAllowed(f, opts.ScopeFilter) {
			continue
		}

		score := float64(h.matched) / float64(len(tokens))
		if h.tf > h.matched {
			score += 0.05 * float64(h.tf-h.matched) / float64(h.tf)
		}
		if score > 1 {
			score = 1
		}
		if f.ReinforcedCount > 0 {
			score += opts.ReinforcementBoost
		}

		results = append(results, ScoredID{ID: h.id, Score: score})
	}

	return results, nil
}

// Lookup performs an exact-match lookup used for entity-lookup expansion,
// returning matches with a fixed score of 1.0.
func (k *KeyValueIndex) Lookup(entity, key, tag string, opts SearchOptions) ([]ScoredID, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Lookup")
	defer timer.Stop()

	k.mu.RLock()
	defer k.mu.RUnlock()

	query := `SELECT id FROM facts WHERE superseded_at IS NULL`
	var args []interface{}
	if entity != "" {
		query += " AND entity = ?"
		args = append(args, entity)
	}
	if key != "" {
		query += " AND key = ?"
		args = append(args, key)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := k.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	defer rows.Close()

	var results []ScoredID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}

		if tag != "" {
			f, err := k.getUnlocked(id)
			if err != nil || !hasTag(f.Tags, tag) {
				continue
			}
		}

		results = append(results, ScoredID{ID: id, Score: 1.0})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// getUnlocked fetches a fact assuming the caller already holds k.mu.
func (k *KeyValueIndex) getUnlocked(id string) (*Fact, error) {
	row := k.db.QueryRow(`SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	return scanFact(row)
}

func scopeAllowed(f *Fact, filter *ScopeFilter) bool {
	if f.Scope == ScopeGlobal || filter == nil {
		return true
	}
	return f.Scope == filter.Scope && f.ScopeTarget == filter.Target
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
