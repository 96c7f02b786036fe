package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

// InsertCheckpoint persists an ephemeral checkpoint (4h TTL, enforced by the
// lifecycle scheduler's prune pass rather than at write time).
func (k *KeyValueIndex) InsertCheckpoint(c *Checkpoint) error {
	filesJSON, err := json.Marshal(c.WorkingFiles)
	if err != nil {
		return fmt.Errorf("marshal working_files: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	_, err = k.db.Exec(
		`INSERT OR REPLACE INTO checkpoints (id, intent, state, expected_outcome, working_files, saved_at)
		 VALUES (?,?,?,?,?,?)`,
		c.ID, c.Intent, c.State, nullStr(c.ExpectedOutcome), string(filesJSON), c.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (k *KeyValueIndex) GetCheckpoint(id string) (*Checkpoint, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var c Checkpoint
	var expectedOutcome sql.NullString
	var filesJSON string

	err := k.db.QueryRow(
		`SELECT id, intent, state, expected_outcome, working_files, saved_at FROM checkpoints WHERE id = ?`, id,
	).Scan(&c.ID, &c.Intent, &c.State, &expectedOutcome, &filesJSON, &c.SavedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	c.ExpectedOutcome = expectedOutcome.String
	_ = json.Unmarshal([]byte(filesJSON), &c.WorkingFiles)
	return &c, nil
}

// PruneExpiredCheckpoints deletes checkpoints older than ttl and returns the
// count removed.
func (k *KeyValueIndex) PruneExpiredCheckpoints(ttl time.Duration, now time.Time) (int, error) {
	timer := logging.StartTimer(logging.CategoryLifecycle, "PruneExpiredCheckpoints")
	defer timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := now.Add(-ttl)
	res, err := k.db.Exec(`DELETE FROM checkpoints WHERE saved_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune checkpoints: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}
