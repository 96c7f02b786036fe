// Package store implements the KeyValueIndex: the durable, transactional
// backing store for Fact, FactLink, Procedure, and Checkpoint rows, plus the
// hand-rolled inverted index used for full-text search.
package store

import "time"

// DecayClass buckets a fact's qualitative lifetime.
type DecayClass string

const (
	DecayPermanent  DecayClass = "permanent"
	DecayStable     DecayClass = "stable"
	DecayActive     DecayClass = "active"
	DecaySession    DecayClass = "session"
	DecayCheckpoint DecayClass = "checkpoint"
)

// DecayClassTTL returns the time-to-live for a decay class, or zero for
// DecayPermanent (no expiry).
func DecayClassTTL(c DecayClass) time.Duration {
	switch c {
	case DecayPermanent:
		return 0
	case DecayStable:
		return 90 * 24 * time.Hour
	case DecayActive:
		return 14 * 24 * time.Hour
	case DecaySession:
		return 24 * time.Hour
	case DecayCheckpoint:
		return 4 * time.Hour
	default:
		return 90 * 24 * time.Hour
	}
}

// Tier is a runtime selection hint controlling what is injected by default.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// Scope bounds a fact's visibility.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeAgent   Scope = "agent"
	ScopeSession Scope = "session"
)

// Default category names; the set is runtime-extensible (see KeyValueIndex.RegisterCategory).
const (
	CategoryPreference = "preference"
	CategoryFact       = "fact"
	CategoryDecision   = "decision"
	CategoryEntity     = "entity"
	CategoryPattern    = "pattern"
	CategoryRule       = "rule"
	CategoryOther      = "other"
)

// Fact is the unit of stored knowledge in the core.
type Fact struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Summary string `json:"summary,omitempty"`

	Category string `json:"category"`
	// Discovered is true when Category was assigned by the auto-classification
	// routine rather than supplied by the caller.
	Discovered bool `json:"discovered"`

	Entity string `json:"entity,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`

	Importance float64    `json:"importance"`
	Confidence float64    `json:"confidence"`
	DecayClass DecayClass `json:"decay_class"`
	Tier       Tier       `json:"tier"`

	Scope       Scope  `json:"scope"`
	ScopeTarget string `json:"scope_target,omitempty"`

	Source     string     `json:"source"`
	SourceDate *time.Time `json:"source_date,omitempty"`

	CreatedAt       time.Time `json:"created_at"`
	LastConfirmedAt time.Time `json:"last_confirmed_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`

	Tags []string `json:"tags,omitempty"`

	RecallCount int `json:"recall_count"`

	ReinforcedCount   int        `json:"reinforced_count"`
	ReinforcedQuotes  []string   `json:"reinforced_quotes,omitempty"`
	LastReinforcedAt  *time.Time `json:"last_reinforced_at,omitempty"`
	PromotedAt        *time.Time `json:"promoted_at,omitempty"`

	SupersedesID    string     `json:"supersedes_id,omitempty"`
	SupersededByID  string     `json:"superseded_by_id,omitempty"`
	SupersededAt    *time.Time `json:"superseded_at,omitempty"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidTo         *time.Time `json:"valid_to,omitempty"`

	HashNormalized string `json:"hash_normalized"`
	EmbeddingRef   string `json:"embedding_ref,omitempty"`
}

// IsCurrent reports whether f is the live head of its supersession chain at
// time now: superseded_at is null and (expires_at is null or > now).
func (f *Fact) IsCurrent(now time.Time) bool {
	if f.SupersededAt != nil {
		return false
	}
	if f.ExpiresAt != nil && !f.ExpiresAt.After(now) {
		return false
	}
	return true
}

// LinkType enumerates the typed relationships a FactLink may carry.
type LinkType string

const (
	LinkSupersedes LinkType = "SUPERSEDES"
	LinkCausedBy   LinkType = "CAUSED_BY"
	LinkPartOf     LinkType = "PART_OF"
	LinkRelatedTo  LinkType = "RELATED_TO"
	LinkDependsOn  LinkType = "DEPENDS_ON"
)

// FactLink is a directed, typed edge between two facts.
type FactLink struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	LinkType  LinkType  `json:"link_type"`
	Strength  float64   `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcedureType distinguishes a known-good recipe from a known failure.
type ProcedureType string

const (
	ProcedurePositive ProcedureType = "positive"
	ProcedureNegative ProcedureType = "negative"
)

// RecipeStep is a single tool invocation within a Procedure's recipe.
type RecipeStep struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Procedure is a learned recipe of tool calls for a recurring task pattern.
type Procedure struct {
	ID            string        `json:"id"`
	TaskPattern   string        `json:"task_pattern"`
	Recipe        []RecipeStep  `json:"recipe"`
	ProcedureType ProcedureType `json:"procedure_type"`

	Confidence   float64 `json:"confidence"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`

	LastValidatedAt time.Time `json:"last_validated_at"`

	ReinforcedCount  int        `json:"reinforced_count"`
	ReinforcedQuotes []string   `json:"reinforced_quotes,omitempty"`
	LastReinforcedAt *time.Time `json:"last_reinforced_at,omitempty"`
	PromotedAt       *time.Time `json:"promoted_at,omitempty"`

	Source string `json:"source"`
}

// Checkpoint is ephemeral session-scoped state with a 4h TTL.
type Checkpoint struct {
	ID              string    `json:"id"`
	Intent          string    `json:"intent"`
	State           string    `json:"state"`
	ExpectedOutcome string    `json:"expected_outcome,omitempty"`
	WorkingFiles    []string  `json:"working_files,omitempty"`
	SavedAt         time.Time `json:"saved_at"`
}

// GetOptions parameterises KeyValueIndex.Get.
type GetOptions struct {
	AsOf        *time.Time
	ScopeFilter *ScopeFilter
}

// Proposal is a pending persona/category suggestion awaiting the external
// governance layer's approval; the core only stores and expires them.
type Proposal struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ScopeFilter restricts reads to facts visible to a given scope/target,
// always including global facts.
type ScopeFilter struct {
	Scope  Scope
	Target string
}

// FactPatch is the set of mutable fields KeyValueIndex.Update may change.
type FactPatch struct {
	Tier              *Tier
	Confidence        *float64
	ExpiresAt         **time.Time
	RecallCount       *int
	LastAccessedAt    *time.Time
	ReinforcedCount   *int
	ReinforcedQuotes  *[]string
	LastReinforcedAt  **time.Time
	PromotedAt        **time.Time
	SupersedesID      *string
	SupersededByID    *string
	SupersededAt      **time.Time
	ValidFrom         *time.Time
	ValidTo           **time.Time
	Category          *string
	Discovered        *bool
	Scope             *Scope
	ScopeTarget       *string
	EmbeddingRef      *string
}

// SearchOptions parameterises full-text and lookup queries.
type SearchOptions struct {
	Limit              int
	ScopeFilter        *ScopeFilter
	IncludeCold        bool
	IncludeSuperseded  bool
	AsOf               *time.Time
	ReinforcementBoost float64
}

// ScoredID pairs a fact id with an implementation-defined relevance score.
type ScoredID struct {
	ID    string
	Score float64
}
