package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

// KnownCategories returns every category name registered so far, including
// the built-in defaults seeded at schema creation.
func (k *KeyValueIndex) KnownCategories() ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	rows, err := k.db.Query(`SELECT name FROM category_registry ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query category registry: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// IsKnownCategory reports whether name is already registered.
func (k *KeyValueIndex) IsKnownCategory(name string) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var found string
	err := k.db.QueryRow(`SELECT name FROM category_registry WHERE name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup category %q: %w", name, err)
	}
	return true, nil
}

// RegisterCategory adds name to the registry if it is not already present.
// Callers invoke this on first use of a category outside the built-in
// default set; the caller is responsible for mirroring the updated set to
// the on-disk discovered-categories snapshot.
func (k *KeyValueIndex) RegisterCategory(name string, now time.Time) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	_, err := k.db.Exec(
		`INSERT OR IGNORE INTO category_registry (name, discovered_at) VALUES (?, ?)`,
		name, now,
	)
	if err != nil {
		return fmt.Errorf("register category %q: %w", name, err)
	}

	logging.StoreDebug("category registered: %s", name)
	return nil
}

// WriteDiscoveredCategoriesSnapshot writes the full known-category set to
// path as a JSON array, mirroring the on-disk `.discovered-categories.json`
// cache named in §6. A no-op when path is empty.
func (k *KeyValueIndex) WriteDiscoveredCategoriesSnapshot(path string) error {
	if path == "" {
		return nil
	}

	names, err := k.KnownCategories()
	if err != nil {
		return fmt.Errorf("snapshot categories: %w", err)
	}

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write categories snapshot %s: %w", path, err)
	}
	return nil
}
