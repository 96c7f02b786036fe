package store

import (
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

// InsertProposal persists a pending proposal awaiting the external
// governance layer's approval or rejection.
func (k *KeyValueIndex) InsertProposal(p *Proposal) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, err := k.db.Exec(
		`INSERT OR REPLACE INTO proposals (id, kind, payload, created_at, expires_at) VALUES (?,?,?,?,?)`,
		p.ID, p.Kind, p.Payload, p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// PruneExpiredProposals deletes proposals whose expires_at has passed and
// returns the count removed, per §9's "expired-proposal sweep" timer.
func (k *KeyValueIndex) PruneExpiredProposals(now time.Time) (int, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "PruneExpiredProposals")
	defer timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()

	res, err := k.db.Exec(`DELETE FROM proposals WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("prune proposals: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}
