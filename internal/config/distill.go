package config

// DistillConfig configures session-log distillation. The distillation
// pipeline itself is a non-core consumer (see §1 Non-goals); the core only
// recognises and persists this configuration so the CLI and host can agree
// on thresholds without a side-channel format.
type DistillConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxSpansPerSession bounds how many candidate facts a distillation pass
	// may hand to FactStore.store() per session log.
	MaxSpansPerSession int `yaml:"max_spans_per_session" json:"max_spans_per_session"`

	// MinSpanChars skips spans too short to carry a standalone fact.
	MinSpanChars int `yaml:"min_span_chars" json:"min_span_chars"`

	// Model names the chat model used to summarise a session log into spans.
	Model string `yaml:"model" json:"model"`
}

func DefaultDistillConfig() DistillConfig {
	return DistillConfig{
		Enabled:            false,
		MaxSpansPerSession: 10,
		MinSpanChars:       40,
		Model:              "",
	}
}
