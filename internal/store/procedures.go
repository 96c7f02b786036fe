package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openclaw/hybridmem/internal/logging"
)

const procedureColumns = `id, task_pattern, recipe, procedure_type, confidence, success_count, failure_count,
	last_validated_at, reinforced_count, reinforced_quotes, last_reinforced_at, promoted_at, source`

// InsertProcedure persists a new procedure.
func (k *KeyValueIndex) InsertProcedure(p *Procedure) error {
	timer := logging.StartTimer(logging.CategoryProcedure, "InsertProcedure")
	defer timer.Stop()

	recipeJSON, err := json.Marshal(p.Recipe)
	if err != nil {
		return fmt.Errorf("marshal recipe: %w", err)
	}
	quotesJSON, _ := json.Marshal(p.ReinforcedQuotes)

	k.mu.Lock()
	defer k.mu.Unlock()

	_, err = k.db.Exec(
		`INSERT INTO procedures (`+procedureColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.TaskPattern, string(recipeJSON), string(p.ProcedureType), p.Confidence, p.SuccessCount, p.FailureCount,
		p.LastValidatedAt, p.ReinforcedCount, string(quotesJSON), nullTime(p.LastReinforcedAt), nullTime(p.PromotedAt), nullStr(p.Source),
	)
	if err != nil {
		return fmt.Errorf("insert procedure: %w", err)
	}
	return nil
}

// GetProcedure retrieves a procedure by id.
func (k *KeyValueIndex) GetProcedure(id string) (*Procedure, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	row := k.db.QueryRow(`SELECT `+procedureColumns+` FROM procedures WHERE id = ?`, id)
	p, err := scanProcedure(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get procedure: %w", err)
	}
	return p, nil
}

// UpdateProcedureReinforcement persists the reinforcement fields after
// reinforce_procedure computes them.
func (k *KeyValueIndex) UpdateProcedureReinforcement(p *Procedure) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	quotesJSON, _ := json.Marshal(p.ReinforcedQuotes)
	_, err := k.db.Exec(
		`UPDATE procedures SET reinforced_count = ?, reinforced_quotes = ?, last_reinforced_at = ?, confidence = ?, promoted_at = ?
		 WHERE id = ?`,
		p.ReinforcedCount, string(quotesJSON), nullTime(p.LastReinforcedAt), p.Confidence, nullTime(p.PromotedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update procedure reinforcement: %w", err)
	}
	return nil
}

// SearchProcedures returns procedures whose task_pattern matches the query
// tokens, ranked by (procedure_type desc, confidence + reinforce boost,
// last_validated_at desc).
func (k *KeyValueIndex) SearchProcedures(task string, procedureType ProcedureType, limit int, reinforceBoost float64) ([]*Procedure, error) {
	timer := logging.StartTimer(logging.CategoryProcedure, "SearchProcedures")
	defer timer.Stop()

	k.mu.RLock()
	defer k.mu.RUnlock()

	rows, err := k.db.Query(`SELECT ` + procedureColumns + ` FROM procedures WHERE procedure_type = ?`, procedureType)
	if err != nil {
		return nil, fmt.Errorf("search procedures: %w", err)
	}
	defer rows.Close()

	tokens := tokenize(task)
	var candidates []*Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			continue
		}
		if matchesAny(tokenize(p.TaskPattern), tokens) {
			candidates = append(candidates, p)
		}
	}

	rankScore := func(p *Procedure) float64 {
		s := p.Confidence
		if p.ReinforcedCount > 0 {
			s += reinforceBoost
		}
		return s
	}

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			swap := false
			if rankScore(candidates[j]) > rankScore(candidates[i]) {
				swap = true
			} else if rankScore(candidates[j]) == rankScore(candidates[i]) &&
				candidates[j].LastValidatedAt.After(candidates[i].LastValidatedAt) {
				swap = true
			}
			if swap {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func matchesAny(haystack, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if set[n] {
			return true
		}
	}
	return false
}

func scanProcedure(row scanner) (*Procedure, error) {
	var p Procedure
	var recipeJSON, quotesJSON, procedureType string
	var source sql.NullString
	var lastReinforcedAt, promotedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.TaskPattern, &recipeJSON, &procedureType, &p.Confidence, &p.SuccessCount, &p.FailureCount,
		&p.LastValidatedAt, &p.ReinforcedCount, &quotesJSON, &lastReinforcedAt, &promotedAt, &source,
	)
	if err != nil {
		return nil, err
	}

	p.ProcedureType = ProcedureType(procedureType)
	p.Source = source.String
	if lastReinforcedAt.Valid {
		p.LastReinforcedAt = &lastReinforcedAt.Time
	}
	if promotedAt.Valid {
		p.PromotedAt = &promotedAt.Time
	}
	_ = json.Unmarshal([]byte(recipeJSON), &p.Recipe)
	_ = json.Unmarshal([]byte(quotesJSON), &p.ReinforcedQuotes)

	return &p, nil
}
