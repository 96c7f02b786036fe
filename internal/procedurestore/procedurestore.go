// Package procedurestore implements reinforcement and ranked search over
// learned tool-call recipes, mirroring the Fact reinforcement rule on top of
// the shared KeyValueIndex's procedure table.
package procedurestore

import (
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/store"
)

const maxReinforcedQuotes = 10
const maxQuoteChars = 200
const promotedConfidence = 0.8

// ProcedureStore owns reinforcement and search over procedures persisted in
// the shared KeyValueIndex.
type ProcedureStore struct {
	idx *store.KeyValueIndex
}

// New wraps idx with procedure operations.
func New(idx *store.KeyValueIndex) *ProcedureStore {
	return &ProcedureStore{idx: idx}
}

// Insert persists a new procedure.
func (p *ProcedureStore) Insert(proc *store.Procedure) error {
	return p.idx.InsertProcedure(proc)
}

// Reinforce truncates quote to 200 chars, appends it (keeping the last 10),
// bumps the reinforcement counter, and promotes confidence to >= 0.8 once
// the counter reaches promotionThreshold and confidence was below it.
func (p *ProcedureStore) Reinforce(id, quote string, promotionThreshold int) error {
	timer := logging.StartTimer(logging.CategoryProcedure, "Reinforce")
	defer timer.Stop()

	proc, err := p.idx.GetProcedure(id)
	if err != nil {
		return fmt.Errorf("procedurestore: reinforce: %w", err)
	}

	if len(quote) > maxQuoteChars {
		quote = quote[:maxQuoteChars]
	}

	proc.ReinforcedQuotes = append(proc.ReinforcedQuotes, quote)
	if len(proc.ReinforcedQuotes) > maxReinforcedQuotes {
		proc.ReinforcedQuotes = proc.ReinforcedQuotes[len(proc.ReinforcedQuotes)-maxReinforcedQuotes:]
	}

	proc.ReinforcedCount++
	now := time.Now()
	proc.LastReinforcedAt = &now

	if proc.ReinforcedCount >= promotionThreshold && proc.Confidence < promotedConfidence {
		proc.Confidence = promotedConfidence
		proc.PromotedAt = &now
		logging.Procedure("procedure promoted: id=%s confidence=%.2f", id, proc.Confidence)
	}

	if err := p.idx.UpdateProcedureReinforcement(proc); err != nil {
		return fmt.Errorf("procedurestore: persist reinforcement: %w", err)
	}
	return nil
}

// Search returns positive procedures ranked by
// (confidence + reinforce boost, last_validated desc).
func (p *ProcedureStore) Search(task string, k int, reinforceBoost float64) ([]*store.Procedure, error) {
	return p.idx.SearchProcedures(task, store.ProcedurePositive, k, reinforceBoost)
}

// GetNegativeMatching returns known-failure recipes matching task.
func (p *ProcedureStore) GetNegativeMatching(task string, k int) ([]*store.Procedure, error) {
	return p.idx.SearchProcedures(task, store.ProcedureNegative, k, 0)
}
