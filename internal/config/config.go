package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/hybridmem/internal/logging"
)

// Config holds the full hybridmem engine configuration (§6 External Interfaces).
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// MemoryRoot is the configurable root directory; defaults to
	// <home>/.openclaw/memory and holds facts.db, credentials.db,
	// proposals.db, memory.wal, .discovered-categories.json, and lancedb/.
	MemoryRoot string `yaml:"memory_root" json:"memory_root"`

	AutoCapture     bool `yaml:"auto_capture" json:"auto_capture"`
	CaptureMaxChars int  `yaml:"capture_max_chars" json:"capture_max_chars"`

	AutoRecall AutoRecallConfig `yaml:"auto_recall" json:"auto_recall"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	WAL        WALConfig        `yaml:"wal" json:"wal"`
	Graph      GraphConfig      `yaml:"graph" json:"graph"`
	MemoryTiering MemoryTieringConfig `yaml:"memory_tiering" json:"memory_tiering"`

	Reflection      ReflectionConfig       `yaml:"reflection" json:"reflection"`
	Procedures      ProceduresConfig       `yaml:"procedures" json:"procedures"`
	Credentials     CredentialsConfig      `yaml:"credentials" json:"credentials"`
	Distill         DistillConfig          `yaml:"distill" json:"distill"`
	Search          SearchConfig           `yaml:"search" json:"search"`
	Ingest          IngestConfig           `yaml:"ingest" json:"ingest"`
	MultiAgent      MultiAgentConfig       `yaml:"multi_agent" json:"multi_agent"`
	LanguageKeywords LanguageKeywordsConfig `yaml:"language_keywords" json:"language_keywords"`

	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Limits    EngineLimits    `yaml:"limits" json:"limits"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Name:    "hybridmem",
		Version: "0.1.0",

		MemoryRoot: filepath.Join(home, ".openclaw", "memory"),

		AutoCapture:     true,
		CaptureMaxChars: 2000,

		AutoRecall:       DefaultAutoRecallConfig(),
		Store:            DefaultStoreConfig(),
		WAL:              DefaultWALConfig(),
		Graph:            DefaultGraphConfig(),
		MemoryTiering:    DefaultMemoryTieringConfig(),
		Reflection:       DefaultReflectionConfig(),
		Procedures:       DefaultProceduresConfig(),
		Credentials:      DefaultCredentialsConfig(),
		Distill:          DefaultDistillConfig(),
		Search:           DefaultSearchConfig(),
		Ingest:           DefaultIngestConfig(),
		MultiAgent:       DefaultMultiAgentConfig(),
		LanguageKeywords: DefaultLanguageKeywordsConfig(),

		Embedding: DefaultEmbeddingConfig(),
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2",
			BaseURL:  "http://localhost:11434",
			Timeout:  "30s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			DebugMode: false,
		},
		Limits: DefaultEngineLimits(),
	}
}

// Load loads configuration from a YAML file, layering it over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("config loaded: memory_root=%s embedding_provider=%s", cfg.MemoryRoot, cfg.Embedding.Provider)

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if root := os.Getenv("HYBRIDMEM_MEMORY_ROOT"); root != "" {
		c.MemoryRoot = root
	}
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		c.LLM.APIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
		c.LLM.BaseURL = endpoint
	}
	if model := os.Getenv("OLLAMA_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}
	if passphrase := os.Getenv(c.Credentials.PassphraseEnv); passphrase != "" {
		// presence is validated by the vault at open time, not here.
		_ = passphrase
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// FactsDBPath returns the path to the primary embedded relational store.
func (c *Config) FactsDBPath() string {
	return filepath.Join(c.MemoryRoot, "facts.db")
}

// CredentialsDBPath returns the path to the vault's ciphertext store.
func (c *Config) CredentialsDBPath() string {
	if c.Credentials.DatabasePath != "" {
		return c.Credentials.DatabasePath
	}
	return filepath.Join(c.MemoryRoot, "credentials.db")
}

// ProposalsDBPath returns the path to the persona-proposal store.
func (c *Config) ProposalsDBPath() string {
	return filepath.Join(c.MemoryRoot, "proposals.db")
}

// WALPath returns the path to the write-ahead log file.
func (c *Config) WALPath() string {
	if c.WAL.Path != "" {
		return c.WAL.Path
	}
	return filepath.Join(c.MemoryRoot, "memory.wal")
}

// VectorIndexDir returns the path to the vector index directory.
func (c *Config) VectorIndexDir() string {
	return filepath.Join(c.MemoryRoot, "lancedb")
}

// DiscoveredCategoriesPath returns the path to the category-discovery cache.
func (c *Config) DiscoveredCategoriesPath() string {
	return filepath.Join(c.MemoryRoot, ".discovered-categories.json")
}
