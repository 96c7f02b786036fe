package config

// SearchConfig holds tuning values for the KeyValueIndex full-text scorer
// and the RetrievalPipeline's candidate fan-out (§4.1, §4.8). The pipeline
// does not read it; it uses built-in values instead: FTS fan-out limit*3,
// boost 0.1, vector fan-out limit*2, expansion whenever a Chat backend is
// set, and up to 5 facts per entity.
type SearchConfig struct {
	// CandidateMultiplier bounds search_fts to at most limit*multiplier rows.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`

	// ReinforcementBoost is added to a fact's FTS score when reinforced_count > 0.
	ReinforcementBoost float64 `yaml:"reinforcement_boost" json:"reinforcement_boost"`

	// VectorCandidateMultiplier bounds the vector search fan-out (up to limit*multiplier).
	VectorCandidateMultiplier int `yaml:"vector_candidate_multiplier" json:"vector_candidate_multiplier"`

	// HypotheticalAnswerExpansion enables the cheap-LLM query expansion step
	// before embedding the query for vector search.
	HypotheticalAnswerExpansion bool `yaml:"hypothetical_answer_expansion" json:"hypothetical_answer_expansion"`

	// MaxFactsPerEntity bounds entity-lookup expansion (§4.8 step 4).
	MaxFactsPerEntity int `yaml:"max_facts_per_entity" json:"max_facts_per_entity"`
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		CandidateMultiplier:         3,
		ReinforcementBoost:          0.1,
		VectorCandidateMultiplier:   2,
		HypotheticalAnswerExpansion: true,
		MaxFactsPerEntity:           3,
	}
}
