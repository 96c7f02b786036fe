package factstore

import (
	"fmt"
	"time"
)

// SweepExpiredProposals deletes expired proposals, the hourly task named in
// §9. Proposal creation belongs to the external governance layer (§1
// Non-goals: "persona-proposal governance"); the core only stores and
// expires rows that layer writes.
func (fs *FactStore) SweepExpiredProposals(now time.Time) (int, error) {
	n, err := fs.idx.PruneExpiredProposals(now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired proposals: %w", err)
	}
	return n, nil
}
