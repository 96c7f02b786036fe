package config

import "encoding/json"

// ReflectionConfig holds settings for re-classifying facts still labelled
// "other". No component reads it: the scheduler's reclassification
// (FactStore.ClassifyOtherFacts) asks the Chat backend, runs on a fixed
// daily timer, and uses none of these fields.
type ReflectionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// TopK is the max neighbours considered per candidate.
	TopK int `yaml:"top_k" json:"top_k"`

	// MinScore is the minimum weighted similarity to treat a neighbour as relevant.
	MinScore float64 `yaml:"min_score" json:"min_score"`

	// RecencyHalfLifeDays weights neighbour relevance by age.
	RecencyHalfLifeDays int `yaml:"recency_half_life_days" json:"recency_half_life_days"`

	// BacklogWatermark is the "other"-labelled fact count that triggers an
	// out-of-cycle run instead of waiting for the daily timer.
	BacklogWatermark int `yaml:"backlog_watermark" json:"backlog_watermark"`

	enabledSet bool
}

// UnmarshalJSON records whether Enabled was explicitly set in JSON input.
// config.Load decodes YAML, so it does not call this, and nothing reads the
// recorded flag.
func (c *ReflectionConfig) UnmarshalJSON(data []byte) error {
	type alias ReflectionConfig
	aux := struct {
		Enabled *bool `json:"enabled"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Enabled != nil {
		c.Enabled = *aux.Enabled
		c.enabledSet = true
	}
	return nil
}

func DefaultReflectionConfig() ReflectionConfig {
	return ReflectionConfig{
		Enabled:             true,
		TopK:                5,
		MinScore:            0.70,
		RecencyHalfLifeDays: 14,
		BacklogWatermark:    300,
	}
}
