package config

// IngestConfig configures bulk ingestion of external documents into the
// FactStore (e.g. a README or runbook chunked into facts tagged by source).
type IngestConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// ChunkChars bounds each ingested chunk before it is stored as a fact.
	ChunkChars int `yaml:"chunk_chars" json:"chunk_chars"`

	// ChunkOverlapChars lets adjacent chunks share context for retrieval.
	ChunkOverlapChars int `yaml:"chunk_overlap_chars" json:"chunk_overlap_chars"`

	// DefaultImportance is applied to ingested facts absent caller override.
	DefaultImportance float64 `yaml:"default_importance" json:"default_importance"`

	// DefaultDecayClass is applied to ingested facts absent caller override.
	DefaultDecayClass string `yaml:"default_decay_class" json:"default_decay_class"`
}

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Enabled:           true,
		ChunkChars:        1200,
		ChunkOverlapChars: 150,
		DefaultImportance: 0.5,
		DefaultDecayClass: "stable",
	}
}
