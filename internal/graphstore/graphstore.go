// Package graphstore exposes the typed fact-link graph: creating edges,
// Hebbian strengthening between co-recalled facts, and bounded traversal.
// It is a thin domain wrapper over store.KeyValueIndex's link tables,
// grounded in the teacher's local_graph.go StoreLink/QueryLinks/TraversePath
// shape.
package graphstore

import (
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/store"
)

const (
	hebbianStep          = 0.05
	hebbianDefaultStrength = 0.5
	maxStrength          = 1.0

	defaultMaxTraversalDepth = 2
	hardCapTraversalDepth    = 3
)

// GraphStore owns typed edges over facts stored in the shared KeyValueIndex.
type GraphStore struct {
	idx *store.KeyValueIndex
}

// New wraps idx with graph operations.
func New(idx *store.KeyValueIndex) *GraphStore {
	return &GraphStore{idx: idx}
}

// CreateLink is idempotent on (src, dst, type); on conflict the new strength
// only replaces the old if greater.
func (g *GraphStore) CreateLink(src, dst string, linkType store.LinkType, strength float64) error {
	if strength <= 0 {
		strength = maxStrength
	}
	return g.idx.CreateLink(store.FactLink{
		SourceID:  src,
		TargetID:  dst,
		LinkType:  linkType,
		Strength:  strength,
		CreatedAt: time.Now(),
	})
}

// StrengthenRelated applies a Hebbian update between two facts recalled
// together: an existing RELATED_TO edge gains +0.05 strength (clamped to
// 1.0); absent one, a new edge is created at the default strength 0.5.
func (g *GraphStore) StrengthenRelated(a, b string) error {
	existing, err := g.idx.GetLink(a, b, store.LinkRelatedTo)
	if err == store.ErrNotFound {
		existing, err = g.idx.GetLink(b, a, store.LinkRelatedTo)
	}

	if err == store.ErrNotFound {
		if cerr := g.idx.CreateLink(store.FactLink{
			SourceID: a, TargetID: b, LinkType: store.LinkRelatedTo,
			Strength: hebbianDefaultStrength, CreatedAt: time.Now(),
		}); cerr != nil {
			return fmt.Errorf("graphstore: create related_to: %w", cerr)
		}
		logging.Graph("related_to created: %s <-> %s strength=%.2f", a, b, hebbianDefaultStrength)
		return nil
	}
	if err != nil {
		return fmt.Errorf("graphstore: lookup related_to: %w", err)
	}

	newStrength := existing.Strength + hebbianStep
	if newStrength > maxStrength {
		newStrength = maxStrength
	}
	if err := g.idx.SetLinkStrength(existing.SourceID, existing.TargetID, store.LinkRelatedTo, newStrength); err != nil {
		return fmt.Errorf("graphstore: strengthen related_to: %w", err)
	}
	logging.GraphDebug("related_to strengthened: %s <-> %s strength=%.2f", a, b, newStrength)
	return nil
}

// Connected performs a breadth-first traversal up to maxDepth (default 2,
// hard-capped at 3), returning visited ids excluding the starting set.
func (g *GraphStore) Connected(ids []string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxTraversalDepth
	}
	if maxDepth > hardCapTraversalDepth {
		maxDepth = hardCapTraversalDepth
	}
	return g.idx.Connected(ids, maxDepth)
}
