package config

import "time"

// LLMConfig configures the Chat and Classifier backends used for
// hypothetical-answer query expansion and ADD/UPDATE/DELETE/NOOP
// classification decisions.
type LLMConfig struct {
	Provider string `yaml:"provider" json:"provider"` // "ollama" or "genai"
	APIKey   string `yaml:"api_key" json:"api_key"`
	Model    string `yaml:"model" json:"model"`
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// LLMTimeouts holds timeout/retry settings for Embedder, Chat, and
// Classifier calls. The backends do not read it: the Ollama clients use a
// fixed 30s HTTP client timeout and no call is retried. The shortest
// timeout in the chain wins: a context deadline shorter than the HTTP
// client timeout cuts the call off first.
type LLMTimeouts struct {
	HTTPClientTimeout time.Duration `json:"http_client_timeout"`
	PerCallTimeout    time.Duration `json:"per_call_timeout"`
	RetryBackoffBase  time.Duration `json:"retry_backoff_base"`
	RetryBackoffMax   time.Duration `json:"retry_backoff_max"`
	MaxRetries        int           `json:"max_retries"`
	RateLimitDelay    time.Duration `json:"rate_limit_delay"`
}

// DefaultLLMTimeouts returns timeouts suited to local Ollama or GenAI calls
// guarding a single embed/chat/classify round trip.
func DefaultLLMTimeouts() LLMTimeouts {
	return LLMTimeouts{
		HTTPClientTimeout: 30 * time.Second,
		PerCallTimeout:    30 * time.Second,
		RetryBackoffBase:  250 * time.Millisecond,
		RetryBackoffMax:   5 * time.Second,
		MaxRetries:        3,
		RateLimitDelay:    0,
	}
}

var globalLLMTimeouts = DefaultLLMTimeouts()

// GetLLMTimeouts returns the global LLM timeout configuration.
func GetLLMTimeouts() LLMTimeouts {
	return globalLLMTimeouts
}

// SetLLMTimeouts updates the global LLM timeout configuration. Call early
// in startup, before any Embedder/Chat/Classifier calls are made.
func SetLLMTimeouts(t LLMTimeouts) {
	globalLLMTimeouts = t
}
