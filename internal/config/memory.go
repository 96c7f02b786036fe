package config

// StoreConfig configures the KeyValueIndex and FactStore write path.
type StoreConfig struct {
	// FuzzyDedupe rejects a store() whose hash_normalized matches a current fact.
	FuzzyDedupe bool `yaml:"fuzzy_dedupe" json:"fuzzy_dedupe"`

	// ClassifyBeforeWrite invokes the Classifier against nearest neighbours
	// before deciding ADD/UPDATE/DELETE/NOOP.
	ClassifyBeforeWrite bool `yaml:"classify_before_write" json:"classify_before_write"`

	// ClassifyModel names the chat model used for classification.
	ClassifyModel string `yaml:"classify_model" json:"classify_model"`

	// DatabasePath is not read: facts.db, credentials.db, proposals.db,
	// memory.wal, and .discovered-categories.json live under MemoryRoot.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// BusyTimeoutMs bounds retries on a contended write transaction.
	BusyTimeoutMs int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
}

// WALConfig configures the write-ahead log used to make compound
// KeyValueIndex/VectorIndex writes appear atomic.
type WALConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path,omitempty"`
	// MaxAgeMs bounds how old a WAL record may be before recovery replays it;
	// older records are pruned without replay.
	MaxAgeMs int64 `yaml:"max_age_ms" json:"max_age_ms"`
	// CompactThresholdBytes is not read: FactStore.Recover rewrites the log
	// with live records only after replaying any records, whatever its size.
	CompactThresholdBytes int64 `yaml:"compact_threshold_bytes" json:"compact_threshold_bytes"`
}

// GraphConfig configures the typed fact-link graph and its use in recall.
type GraphConfig struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	AutoLink         bool    `yaml:"auto_link" json:"auto_link"`
	AutoLinkMinScore float64 `yaml:"auto_link_min_score" json:"auto_link_min_score"`
	AutoLinkLimit    int     `yaml:"auto_link_limit" json:"auto_link_limit"`
	MaxTraversalDepth int    `yaml:"max_traversal_depth" json:"max_traversal_depth"`
	UseInRecall      bool    `yaml:"use_in_recall" json:"use_in_recall"`
}

// MemoryTieringConfig configures hot/warm/cold tier compaction.
type MemoryTieringConfig struct {
	Enabled                  bool `yaml:"enabled" json:"enabled"`
	HotMaxTokens             int  `yaml:"hot_max_tokens" json:"hot_max_tokens"`
	HotMaxFacts              int  `yaml:"hot_max_facts" json:"hot_max_facts"`
	InactivePreferenceDays   int  `yaml:"inactive_preference_days" json:"inactive_preference_days"`
	CompactionOnSessionEnd   bool `yaml:"compaction_on_session_end" json:"compaction_on_session_end"`
}

// AutoRecallConfig configures the retrieval pipeline's fetch, scoring, and
// token-budgeted packing behaviour.
type AutoRecallConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	MaxTokens             int    `yaml:"max_tokens" json:"max_tokens"`
	MaxPerMemoryChars     int    `yaml:"max_per_memory_chars" json:"max_per_memory_chars"`
	InjectionFormat       string `yaml:"injection_format" json:"injection_format"` // full|short|minimal|progressive|progressive_hybrid
	Limit                 int    `yaml:"limit" json:"limit"`
	MinScore              float64 `yaml:"min_score" json:"min_score"`
	PreferLongTerm        bool    `yaml:"prefer_long_term" json:"prefer_long_term"`
	UseImportanceRecency  bool    `yaml:"use_importance_recency" json:"use_importance_recency"`

	SummaryThreshold        int  `yaml:"summary_threshold" json:"summary_threshold"`
	SummaryMaxChars         int  `yaml:"summary_max_chars" json:"summary_max_chars"`
	UseSummaryInInjection   bool `yaml:"use_summary_in_injection" json:"use_summary_in_injection"`
	SummarizeWhenOverBudget bool `yaml:"summarize_when_over_budget" json:"summarize_when_over_budget"`

	ProgressiveMaxCandidates      int  `yaml:"progressive_max_candidates" json:"progressive_max_candidates"`
	ProgressiveIndexMaxTokens     int  `yaml:"progressive_index_max_tokens" json:"progressive_index_max_tokens"`
	ProgressiveGroupByCategory    bool `yaml:"progressive_group_by_category" json:"progressive_group_by_category"`
	ProgressivePinnedRecallCount  int  `yaml:"progressive_pinned_recall_count" json:"progressive_pinned_recall_count"`

	AuthFailure  string `yaml:"auth_failure" json:"auth_failure"` // "fts_only"|"empty"
	EntityLookup bool   `yaml:"entity_lookup" json:"entity_lookup"`
	ScopeFilter  bool   `yaml:"scope_filter" json:"scope_filter"`
}

// EmbeddingConfig configures the vector embedding engine.
// Supports Ollama (local) and Google GenAI (cloud) backends.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" json:"provider"`

	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model" json:"genai_model"`

	// TaskType for GenAI embeddings, e.g. SEMANTIC_SIMILARITY, RETRIEVAL_QUERY, RETRIEVAL_DOCUMENT.
	TaskType string `yaml:"task_type" json:"task_type"`

	// Dimensions must match the embedding model; changing it is a breaking
	// migration (§6 embedding model registry).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		FuzzyDedupe:         true,
		ClassifyBeforeWrite: true,
		ClassifyModel:       "",
		DatabasePath:        "",
		BusyTimeoutMs:       5000,
	}
}

func DefaultWALConfig() WALConfig {
	return WALConfig{
		Enabled:               true,
		MaxAgeMs:              5 * 60 * 1000,
		CompactThresholdBytes: 4 * 1024 * 1024,
	}
}

func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Enabled:           true,
		AutoLink:          true,
		AutoLinkMinScore:  0.6,
		AutoLinkLimit:     5,
		MaxTraversalDepth: 2,
		UseInRecall:       true,
	}
}

func DefaultMemoryTieringConfig() MemoryTieringConfig {
	return MemoryTieringConfig{
		Enabled:                true,
		HotMaxTokens:           2000,
		HotMaxFacts:            50,
		InactivePreferenceDays: 7,
		CompactionOnSessionEnd: true,
	}
}

func DefaultAutoRecallConfig() AutoRecallConfig {
	return AutoRecallConfig{
		Enabled:                      true,
		MaxTokens:                    4000,
		MaxPerMemoryChars:            400,
		InjectionFormat:              "full",
		Limit:                        20,
		MinScore:                     0.5,
		PreferLongTerm:               true,
		UseImportanceRecency:         true,
		SummaryThreshold:             600,
		SummaryMaxChars:              240,
		UseSummaryInInjection:        true,
		SummarizeWhenOverBudget:      true,
		ProgressiveMaxCandidates:     50,
		ProgressiveIndexMaxTokens:    1500,
		ProgressiveGroupByCategory:   true,
		ProgressivePinnedRecallCount: 3,
		AuthFailure:                  "fts_only",
		EntityLookup:                 true,
		ScopeFilter:                  true,
	}
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
		Dimensions:     768,
	}
}
