package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/openclaw/hybridmem/internal/logging"
)

// KeyValueIndex is the durable, transactional store for Fact, FactLink,
// Procedure, and Checkpoint rows (§4.1). It serialises writers with a
// single-writer-many-reader discipline; readers proceed concurrently via
// SQLite's own busy-timeout/retry mechanism.
type KeyValueIndex struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	busyTimeout time.Duration
}

// Options configures KeyValueIndex.Open.
type Options struct {
	Path          string
	BusyTimeoutMs int
}

// Open opens (creating if absent) the facts.db file at opts.Path and applies
// pending migrations.
func Open(opts Options) (*KeyValueIndex, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", opts.Path, opts.BusyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrIndexUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrations: %v", ErrIndexUnavailable, err)
	}

	logging.Store("facts index opened: path=%s", opts.Path)

	return &KeyValueIndex{
		db:          db,
		path:        opts.Path,
		busyTimeout: time.Duration(opts.BusyTimeoutMs) * time.Millisecond,
	}, nil
}

// Close releases the underlying database handle.
func (k *KeyValueIndex) Close() error {
	return k.db.Close()
}

// DB exposes the raw handle for sibling packages (graphstore, procedurestore)
// that share this index's schema and migration machinery.
func (k *KeyValueIndex) DB() *sql.DB {
	return k.db
}

// Lock/Unlock/RLock/RUnlock expose the index's write-serialisation mutex so
// FactStore can hold it across the KV-then-vector half of a compound write
// without a second independent lock.
func (k *KeyValueIndex) Lock()    { k.mu.Lock() }
func (k *KeyValueIndex) Unlock()  { k.mu.Unlock() }
func (k *KeyValueIndex) RLock()   { k.mu.RLock() }
func (k *KeyValueIndex) RUnlock() { k.mu.RUnlock() }

// Tx executes fn under a write transaction; either all mutations commit or
// none do. Busy-lock contention is retried with bounded back-off up to the
// configured busy timeout (delegated to SQLite's own busy_timeout pragma).
func (k *KeyValueIndex) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := k.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.StoreWarn("rollback failed after error %v: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Count returns the number of current facts matching the given category and
// tier (empty string = no filter on that dimension).
func (k *KeyValueIndex) Count(category, tier string) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	query := "SELECT COUNT(*) FROM facts WHERE superseded_at IS NULL"
	var args []interface{}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if tier != "" {
		query += " AND tier = ?"
		args = append(args, tier)
	}

	var n int
	if err := k.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
