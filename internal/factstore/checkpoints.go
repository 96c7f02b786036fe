package factstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/hybridmem/internal/store"
)

// checkpointTTL matches the decay_class TTL table's 4h checkpoint entry.
const checkpointTTL = 4 * time.Hour

// SaveCheckpoint persists an ephemeral snapshot of in-progress agent
// session state, assigning an id and timestamp if the caller left them
// unset.
func (fs *FactStore) SaveCheckpoint(c *store.Checkpoint) (*store.Checkpoint, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}
	if err := fs.idx.InsertCheckpoint(c); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	return c, nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (fs *FactStore) GetCheckpoint(id string) (*store.Checkpoint, error) {
	return fs.idx.GetCheckpoint(id)
}

// PruneExpiredCheckpoints deletes checkpoints older than the 4h TTL; called
// hourly by the lifecycle scheduler alongside fact pruning.
func (fs *FactStore) PruneExpiredCheckpoints(now time.Time) (int, error) {
	return fs.idx.PruneExpiredCheckpoints(checkpointTTL, now)
}
