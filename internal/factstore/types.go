// Package factstore implements the FactStore: the only component permitted
// to mutate Facts. It owns the KeyValueIndex, VectorIndex, and
// WriteAheadLog, serialising every compound write through the WAL, and
// delegates to the CredentialVault and the llm package's Embedder/Chat/
// Classifier interfaces for credential redirection and ADD/UPDATE/DELETE/
// NOOP classification.
package factstore

import "time"

// StoreArgs is the caller-supplied payload for Store.
type StoreArgs struct {
	Text    string
	Summary string

	Category   string
	Discovered bool

	Entity string
	Key    string
	Value  string

	Importance float64
	Confidence float64

	DecayClass string // permanent|stable|active|session|checkpoint; "" lets Store pick a default
	Scope      string // global|user|agent|session; "" defaults to global
	ScopeTarget string

	Source     string
	SourceDate *time.Time

	Tags []string
}

// TierCompactOptions parameterises TierCompact (§4.9).
type TierCompactOptions struct {
	Now                    time.Time
	HotMaxTokens           int
	HotMaxFacts            int
	InactivePreferenceDays int
}

// TierCompactResult reports how many facts moved to each tier.
type TierCompactResult struct {
	MovedToCold int
	MovedToWarm int
	MovedToHot  int
}
