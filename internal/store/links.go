package store

import (
	"database/sql"
	"fmt"

	"github.com/openclaw/hybridmem/internal/logging"
)

// CreateLink is idempotent on (source, target, type); on conflict the new
// strength replaces the old only if greater.
func (k *KeyValueIndex) CreateLink(link FactLink) error {
	timer := logging.StartTimer(logging.CategoryGraph, "CreateLink")
	defer timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()

	var existing float64
	err := k.db.QueryRow(
		`SELECT strength FROM fact_links WHERE source_id = ? AND target_id = ? AND link_type = ?`,
		link.SourceID, link.TargetID, link.LinkType,
	).Scan(&existing)

	if err == sql.ErrNoRows {
		_, err := k.db.Exec(
			`INSERT INTO fact_links (source_id, target_id, link_type, strength, created_at) VALUES (?,?,?,?,?)`,
			link.SourceID, link.TargetID, link.LinkType, link.Strength, link.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create link: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("check existing link: %w", err)
	}

	if link.Strength > existing {
		_, err := k.db.Exec(
			`UPDATE fact_links SET strength = ? WHERE source_id = ? AND target_id = ? AND link_type = ?`,
			link.Strength, link.SourceID, link.TargetID, link.LinkType,
		)
		if err != nil {
			return fmt.Errorf("update link strength: %w", err)
		}
	}
	return nil
}

// GetLink returns the link between source and target of the given type, if
// any.
func (k *KeyValueIndex) GetLink(source, target string, linkType LinkType) (*FactLink, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var l FactLink
	err := k.db.QueryRow(
		`SELECT source_id, target_id, link_type, strength, created_at FROM fact_links
		 WHERE source_id = ? AND target_id = ? AND link_type = ?`,
		source, target, linkType,
	).Scan(&l.SourceID, &l.TargetID, &l.LinkType, &l.Strength, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return &l, nil
}

// SetLinkStrength overwrites a link's strength unconditionally (used by
// Hebbian strengthening, which has already computed the clamped value).
func (k *KeyValueIndex) SetLinkStrength(source, target string, linkType LinkType, strength float64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, err := k.db.Exec(
		`UPDATE fact_links SET strength = ? WHERE source_id = ? AND target_id = ? AND link_type = ?`,
		strength, source, target, linkType,
	)
	if err != nil {
		return fmt.Errorf("set link strength: %w", err)
	}
	return nil
}

// NeighboursOf returns every link touching id, in either direction, ignoring
// direction for traversal purposes.
func (k *KeyValueIndex) NeighboursOf(id string) ([]FactLink, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.neighboursOfLocked(id)
}

// neighboursOfLocked assumes the caller already holds k.mu, avoiding the
// nested-RLock deadlock a naive recursive traversal would hit.
func (k *KeyValueIndex) neighboursOfLocked(id string) ([]FactLink, error) {
	rows, err := k.db.Query(
		`SELECT source_id, target_id, link_type, strength, created_at FROM fact_links
		 WHERE source_id = ? OR target_id = ?`,
		id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query neighbours: %w", err)
	}
	defer rows.Close()

	var links []FactLink
	for rows.Next() {
		var l FactLink
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.LinkType, &l.Strength, &l.CreatedAt); err != nil {
			continue
		}
		links = append(links, l)
	}
	return links, nil
}

// Connected performs a breadth-first traversal up to maxDepth (hard-capped
// by the caller), returning visited ids excluding the starting set. Link
// direction is ignored.
func (k *KeyValueIndex) Connected(ids []string, maxDepth int) ([]string, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "Connected")
	defer timer.Stop()

	k.mu.RLock()
	defer k.mu.RUnlock()

	visited := map[string]bool{}
	for _, id := range ids {
		visited[id] = true
	}

	frontier := append([]string{}, ids...)
	var extra []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			links, err := k.neighboursOfLocked(id)
			if err != nil {
				continue
			}
			for _, l := range links {
				other := l.TargetID
				if other == id {
					other = l.SourceID
				}
				if !visited[other] {
					visited[other] = true
					extra = append(extra, other)
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	return extra, nil
}
