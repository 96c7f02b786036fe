// Package wal implements the write-ahead log that makes a compound
// KeyValueIndex+VectorIndex write appear atomic to a crash-stop observer.
// The on-disk shape — an append-only file opened once and fsynced after
// every write, guarded by a mutex — follows the same file-handle pattern
// the logging package uses for its per-category log files.
package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

// Operation names the kind of compound write a record protects.
type Operation string

const (
	OpStore  Operation = "store"
	OpUpdate Operation = "update"
)

// Record is a single write-ahead log entry.
type Record struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Operation      Operation       `json:"operation"`
	FactID         string          `json:"fact_id"`
	HashNormalized string          `json:"hash_normalized"`
	Payload        json.RawMessage `json:"payload"`
	Embedding      []float32       `json:"embedding,omitempty"`
}

// WriteAheadLog is the append-only, fsync-backed log protecting compound
// writes across the KeyValueIndex and VectorIndex.
type WriteAheadLog struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	maxAge time.Duration
}

// Options configures Open.
type Options struct {
	Path string
	// MaxAge bounds how old a record may be and still be replayed on
	// recovery; older records are pruned without replay. Default 5 minutes.
	MaxAge time.Duration
}

// Open opens (creating if absent) the WAL file at opts.Path for appending.
func Open(opts Options) (*WriteAheadLog, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 5 * time.Minute
	}

	file, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", opts.Path, err)
	}

	logging.Lifecycle("wal opened: path=%s max_age=%s", opts.Path, opts.MaxAge)

	return &WriteAheadLog{path: opts.Path, file: file, maxAge: opts.MaxAge}, nil
}

// Close closes the underlying file handle.
func (w *WriteAheadLog) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Append writes rec as one NDJSON line and fsyncs before returning.
func (w *WriteAheadLog) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("wal: marshal record: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("wal: append: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Tombstone marks id's record as applied by appending a tombstone line; the
// next Compact pass drops both the original record and its tombstone.
func (w *WriteAheadLog) Tombstone(id string) error {
	return w.Append(Record{ID: id, Timestamp: time.Now(), Operation: "tombstone"})
}

// ReadAll parses every record currently in the log file, in append order.
func (w *WriteAheadLog) ReadAll() ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if err != nil {
		return nil, fmt.Errorf("wal: open for read: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logging.LifecycleWarn("wal: skipping malformed record: %v", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wal: scan: %w", err)
	}
	return records, nil
}

// PendingReplay returns, from the current log contents, the subset of
// store/update records younger than MaxAge that have not been tombstoned.
// Records with an unrecognised operation or that are older than MaxAge are
// dropped (and logged) rather than replayed.
func (w *WriteAheadLog) PendingReplay(now time.Time) ([]Record, error) {
	records, err := w.ReadAll()
	if err != nil {
		return nil, err
	}

	tombstoned := map[string]bool{}
	for _, r := range records {
		if r.Operation == "tombstone" {
			tombstoned[r.ID] = true
		}
	}

	var pending []Record
	for _, r := range records {
		if r.Operation == "tombstone" || tombstoned[r.ID] {
			continue
		}
		if r.Operation != OpStore && r.Operation != OpUpdate {
			logging.LifecycleWarn("wal: skipping unsupported operation %q for record %s", r.Operation, r.ID)
			continue
		}
		age := now.Sub(r.Timestamp)
		if age > w.maxAge {
			logging.LifecycleWarn("wal: pruning stale record %s (age %s > max_age %s)", r.ID, age, w.maxAge)
			continue
		}
		pending = append(pending, r)
	}
	return pending, nil
}

// Compact rewrites the log file to contain only records that are neither
// tombstoned nor stale, collapsing append-only growth after a recovery pass.
func (w *WriteAheadLog) Compact(now time.Time) error {
	timer := logging.StartTimer(logging.CategoryLifecycle, "WAL.Compact")
	defer timer.Stop()

	pending, err := w.PendingReplay(now)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close before compact: %w", err)
	}

	tmpPath := w.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("wal: open compact tmp: %w", err)
	}

	for _, r := range pending {
		data, err := json.Marshal(r)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("wal: write compact tmp: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("wal: fsync compact tmp: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("wal: rename compact tmp: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("wal: reopen after compact: %w", err)
	}
	w.file = file

	logging.Lifecycle("wal compacted: path=%s kept=%d", w.path, len(pending))
	return nil
}
