package config

// LanguageKeywordsConfig configures the keyword lists reloaded by the
// scheduler's weekly rebuild (§4.10). Only CustomKeywordsPath is read: the
// rebuild reloads the auto-tag stop-word set from it. Capture triggers are
// a fixed English list in the adapter package.
type LanguageKeywordsConfig struct {
	// Languages lists ISO 639-1 codes. No component reads it.
	Languages []string `yaml:"languages" json:"languages"`

	// RebuildIntervalDays is not read; the scheduler rebuilds on a fixed
	// 7-day timer.
	RebuildIntervalDays int `yaml:"rebuild_interval_days" json:"rebuild_interval_days"`

	// CustomKeywordsPath optionally points at a user-supplied keyword file
	// merged on top of the built-in sets.
	CustomKeywordsPath string `yaml:"custom_keywords_path" json:"custom_keywords_path,omitempty"`
}

func DefaultLanguageKeywordsConfig() LanguageKeywordsConfig {
	return LanguageKeywordsConfig{
		Languages:            []string{"en"},
		RebuildIntervalDays:  7,
		CustomKeywordsPath:   "",
	}
}
