package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openclaw/hybridmem/internal/logging"
)

// CurrentSchemaVersion tracks the facts.db layout.
//
// v1: facts, fact_links, procedures, checkpoints, fts_tokens,
// category_registry, proposals.
const CurrentSchemaVersion = 1

// defaultCategories are seeded into category_registry at schema creation,
// matching the open-but-pre-populated category set from §3.
var defaultCategories = []string{
	CategoryPreference, CategoryFact, CategoryDecision,
	CategoryEntity, CategoryPattern, CategoryRule, CategoryOther,
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS facts (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	summary TEXT,
	category TEXT NOT NULL,
	discovered INTEGER NOT NULL DEFAULT 0,
	entity TEXT,
	key TEXT,
	value TEXT,
	importance REAL NOT NULL DEFAULT 0,
	confidence REAL NOT NULL DEFAULT 1,
	decay_class TEXT NOT NULL,
	tier TEXT NOT NULL DEFAULT 'warm',
	scope TEXT NOT NULL DEFAULT 'global',
	scope_target TEXT,
	source TEXT,
	source_date DATETIME,
	created_at DATETIME NOT NULL,
	last_confirmed_at DATETIME NOT NULL,
	last_accessed_at DATETIME NOT NULL,
	expires_at DATETIME,
	tags TEXT NOT NULL DEFAULT '[]',
	recall_count INTEGER NOT NULL DEFAULT 0,
	reinforced_count INTEGER NOT NULL DEFAULT 0,
	reinforced_quotes TEXT NOT NULL DEFAULT '[]',
	last_reinforced_at DATETIME,
	promoted_at DATETIME,
	supersedes_id TEXT,
	superseded_by_id TEXT,
	superseded_at DATETIME,
	valid_from DATETIME NOT NULL,
	valid_to DATETIME,
	hash_normalized TEXT NOT NULL,
	embedding_ref TEXT
);

CREATE INDEX IF NOT EXISTS idx_facts_hash ON facts(hash_normalized);
CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(entity);
CREATE INDEX IF NOT EXISTS idx_facts_category ON facts(category);
CREATE INDEX IF NOT EXISTS idx_facts_tier ON facts(tier);
CREATE INDEX IF NOT EXISTS idx_facts_decay_class ON facts(decay_class);
CREATE INDEX IF NOT EXISTS idx_facts_scope ON facts(scope, scope_target);
CREATE INDEX IF NOT EXISTS idx_facts_superseded ON facts(superseded_at);
CREATE INDEX IF NOT EXISTS idx_facts_expires ON facts(expires_at);

CREATE TABLE IF NOT EXISTS fact_links (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	link_type TEXT NOT NULL,
	strength REAL NOT NULL DEFAULT 1.0,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (source_id, target_id, link_type)
);

CREATE INDEX IF NOT EXISTS idx_fact_links_source ON fact_links(source_id);
CREATE INDEX IF NOT EXISTS idx_fact_links_target ON fact_links(target_id);

CREATE TABLE IF NOT EXISTS procedures (
	id TEXT PRIMARY KEY,
	task_pattern TEXT NOT NULL,
	recipe TEXT NOT NULL,
	procedure_type TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.5,
	success_count INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	last_validated_at DATETIME NOT NULL,
	reinforced_count INTEGER NOT NULL DEFAULT 0,
	reinforced_quotes TEXT NOT NULL DEFAULT '[]',
	last_reinforced_at DATETIME,
	promoted_at DATETIME,
	source TEXT
);

CREATE INDEX IF NOT EXISTS idx_procedures_type ON procedures(procedure_type);

CREATE TABLE IF NOT EXISTS checkpoints (
	id TEXT PRIMARY KEY,
	intent TEXT NOT NULL,
	state TEXT NOT NULL,
	expected_outcome TEXT,
	working_files TEXT NOT NULL DEFAULT '[]',
	saved_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fts_tokens (
	token TEXT NOT NULL,
	fact_id TEXT NOT NULL,
	term_freq INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (token, fact_id)
);

CREATE INDEX IF NOT EXISTS idx_fts_tokens_token ON fts_tokens(token);
CREATE INDEX IF NOT EXISTS idx_fts_tokens_fact ON fts_tokens(fact_id);

CREATE TABLE IF NOT EXISTS category_registry (
	name TEXT PRIMARY KEY,
	discovered_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposals (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_proposals_expires ON proposals(expires_at);
`

// runMigrations creates tables idempotently and applies any additive
// column migrations, following the teacher's check-before-add pattern.
func runMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "runMigrations")
	defer timer.Stop()

	if _, err := db.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	if err := seedDefaultCategories(db); err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			logging.StoreWarn("migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		logging.Store("migration applied: %s.%s", m.Table, m.Column)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		logging.StoreWarn("failed to set user_version: %v", err)
	}

	return nil
}

// Migration is an additive, idempotent schema change applied after the base
// CREATE TABLE pass — reserved for future columns introduced without a full
// schema version bump.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{}

// seedDefaultCategories registers the built-in category set, idempotently,
// so KnownCategories never returns empty on a freshly created store.
func seedDefaultCategories(db *sql.DB) error {
	now := time.Now()
	for _, name := range defaultCategories {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO category_registry (name, discovered_at) VALUES (?, ?)`,
			name, now,
		); err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
