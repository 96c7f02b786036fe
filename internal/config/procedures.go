package config

// ProceduresConfig configures the ProcedureStore's reinforcement and
// ranked-search behaviour (§4.6).
type ProceduresConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// PromotionThreshold is the reinforcement count at which a procedure's
	// confidence is promoted to >= 0.8.
	PromotionThreshold int `yaml:"promotion_threshold" json:"promotion_threshold"`

	// ReinforceBoost is added to confidence-ranked score when reinforced_count > 0.
	ReinforceBoost float64 `yaml:"reinforce_boost" json:"reinforce_boost"`

	// SearchTopK bounds the results returned from search(task, k, ...).
	SearchTopK int `yaml:"search_top_k" json:"search_top_k"`

	// NegativeMatchTopK bounds get_negative_matching results.
	NegativeMatchTopK int `yaml:"negative_match_top_k" json:"negative_match_top_k"`
}

func DefaultProceduresConfig() ProceduresConfig {
	return ProceduresConfig{
		Enabled:             true,
		PromotionThreshold:  2,
		ReinforceBoost:      0.15,
		SearchTopK:          5,
		NegativeMatchTopK:   3,
	}
}
