// Package vectorindex implements approximate nearest-neighbour search over
// L2-normalised embedding vectors. Rows are kept in an in-memory slice
// guarded by a mutex and mirrored to a plain SQLite table so the index can
// rehydrate after a restart; the cosine-distance arithmetic is adapted from
// the teacher's vec0 compatibility shim, but the virtual-table plumbing
// itself is not reproduced (the teacher's own comment notes the in-memory
// rows don't need to survive a restart — a backfill repopulates them, which
// is exactly what Open does here).
package vectorindex

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/openclaw/hybridmem/internal/logging"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimension fixed at Open.
var ErrDimensionMismatch = fmt.Errorf("vectorindex: dimension mismatch")

type row struct {
	id         string
	vector     []float32
	category   string
	importance float64
}

// VectorIndex is an append-mostly, mutex-guarded in-memory ANN index backed
// by a mirrored SQLite table for crash durability.
type VectorIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	dimension int
	rows      map[string]row
}

// Options configures Open.
type Options struct {
	// Path to the sqlite file backing the mirrored `vectors` table, one per
	// configured embedding dimension (spec's lancedb/ directory convention).
	Path      string
	Dimension int
}

// Open opens (creating if absent) the mirrored vectors table at opts.Path
// and rehydrates the in-memory index from it.
func Open(opts Options) (*VectorIndex, error) {
	timer := logging.StartTimer(logging.CategoryVector, "Open")
	defer timer.Stop()

	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be positive")
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", opts.Path))
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		category TEXT NOT NULL,
		importance REAL NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorindex: create table: %w", err)
	}

	idx := &VectorIndex{db: db, dimension: opts.Dimension, rows: make(map[string]row)}
	if err := idx.backfill(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorindex: backfill: %w", err)
	}

	logging.Vector("vector index opened: path=%s dimension=%d rows=%d", opts.Path, opts.Dimension, len(idx.rows))
	return idx, nil
}

// backfill loads every row from the mirrored table into memory, mirroring
// the teacher's backfillVecIndex pass.
func (v *VectorIndex) backfill() error {
	rows, err := v.db.Query(`SELECT id, vector, category, importance FROM vectors`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, category string
		var importance float64
		var blob []byte
		if err := rows.Scan(&id, &blob, &category, &importance); err != nil {
			continue
		}
		vec, err := decodeVector(blob)
		if err != nil {
			logging.VectorWarn("skipping corrupt vector row %s: %v", id, err)
			continue
		}
		v.rows[id] = row{id: id, vector: vec, category: category, importance: importance}
	}
	return nil
}

// Close releases the underlying database handle.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}

// Dimensions returns the dimension fixed at Open.
func (v *VectorIndex) Dimensions() int { return v.dimension }

// Upsert inserts or replaces the vector for id.
func (v *VectorIndex) Upsert(id string, vector []float32, category string, importance float64) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), v.dimension)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	blob := encodeVector(vector)
	if _, err := v.db.Exec(
		`INSERT INTO vectors (id, vector, category, importance) VALUES (?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, category = excluded.category, importance = excluded.importance`,
		id, blob, category, importance,
	); err != nil {
		return fmt.Errorf("vectorindex: upsert: %w", err)
	}

	v.rows[id] = row{id: id, vector: vector, category: category, importance: importance}
	return nil
}

// Delete removes id from the index, if present.
func (v *VectorIndex) Delete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.db.Exec(`DELETE FROM vectors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("vectorindex: delete: %w", err)
	}
	delete(v.rows, id)
	return nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.rows)
}

// IDs returns every id currently stored in the index, in no particular
// order. Used by the lifecycle scheduler's reconciliation pass to find
// vector rows with no current KV counterpart.
func (v *VectorIndex) IDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ids := make([]string, 0, len(v.rows))
	for id := range v.rows {
		ids = append(ids, id)
	}
	return ids
}

// Match pairs an id with its cosine similarity to the query vector.
type Match struct {
	ID     string
	Cosine float64
}

// Search returns up to k matches with cosine similarity >= minScore, sorted
// descending by score.
func (v *VectorIndex) Search(query []float32, k int, minScore float64) ([]Match, error) {
	if len(query) != v.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), v.dimension)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	matches := make([]Match, 0, len(v.rows))
	for id, r := range v.rows {
		cos, err := cosineSimilarity(query, r.vector)
		if err != nil {
			continue
		}
		if cos >= minScore {
			matches = append(matches, Match{ID: id, Cosine: cos})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Cosine != matches[j].Cosine {
			return matches[i].Cosine > matches[j].Cosine
		}
		return matches[i].ID < matches[j].ID
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// HasNearDuplicate reports whether any stored vector has cosine similarity
// >= threshold to query.
func (v *VectorIndex) HasNearDuplicate(query []float32, threshold float64) (bool, error) {
	if len(query) != v.dimension {
		return false, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), v.dimension)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, r := range v.rows {
		cos, err := cosineSimilarity(query, r.vector)
		if err != nil {
			continue
		}
		if cos >= threshold {
			return true, nil
		}
	}
	return false, nil
}

// cosineSimilarity is adapted from the teacher's vecDistanceCos, returning
// raw cosine similarity (1 - distance) rather than distance.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
