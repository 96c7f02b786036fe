// Package engine boots the full hybridmem stack from a single Config,
// ensuring consistent wiring across the CLI and any future server
// surface, the same way the teacher's internal/system.BootCortex boots
// its kernel/shards/stores stack once and hands callers a single handle.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/hybridmem/internal/adapter"
	"github.com/openclaw/hybridmem/internal/config"
	"github.com/openclaw/hybridmem/internal/factstore"
	"github.com/openclaw/hybridmem/internal/graphstore"
	"github.com/openclaw/hybridmem/internal/lifecycle"
	"github.com/openclaw/hybridmem/internal/llm"
	"github.com/openclaw/hybridmem/internal/logging"
	"github.com/openclaw/hybridmem/internal/procedurestore"
	"github.com/openclaw/hybridmem/internal/retrieval"
	"github.com/openclaw/hybridmem/internal/store"
	"github.com/openclaw/hybridmem/internal/vault"
	"github.com/openclaw/hybridmem/internal/vectorindex"
	"github.com/openclaw/hybridmem/internal/wal"
)

// Engine holds every component booted from a Config, open and ready to use.
// Close releases every owned resource.
type Engine struct {
	Config *config.Config

	Index      *store.KeyValueIndex
	Vector     *vectorindex.VectorIndex
	WAL        *wal.WriteAheadLog
	Vault      *vault.Vault
	Graph      *graphstore.GraphStore
	Procedures *procedurestore.ProcedureStore

	Facts     *factstore.FactStore
	Recall    *retrieval.Pipeline
	Scheduler *lifecycle.Scheduler
	Adapter   *adapter.Adapter
}

// Boot opens every store named by cfg and wires the core components
// together. Callers own the returned Engine and must call Close.
func Boot(cfg *config.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.MemoryRoot, 0700); err != nil {
		return nil, fmt.Errorf("create memory root: %w", err)
	}

	idx, err := store.Open(store.Options{Path: cfg.FactsDBPath(), BusyTimeoutMs: cfg.Store.BusyTimeoutMs})
	if err != nil {
		return nil, fmt.Errorf("open facts index: %w", err)
	}

	eng := &Engine{Config: cfg, Index: idx}

	if cfg.Embedding.Dimensions > 0 {
		if err := os.MkdirAll(cfg.VectorIndexDir(), 0700); err != nil {
			eng.closeOpened()
			return nil, fmt.Errorf("create vector index dir: %w", err)
		}
		vecPath := filepath.Join(cfg.VectorIndexDir(), fmt.Sprintf("vectors-%d.db", cfg.Embedding.Dimensions))
		eng.Vector, err = vectorindex.Open(vectorindex.Options{Path: vecPath, Dimension: cfg.Embedding.Dimensions})
		if err != nil {
			eng.closeOpened()
			return nil, fmt.Errorf("open vector index: %w", err)
		}
	}

	eng.WAL, err = wal.Open(wal.Options{Path: cfg.WALPath(), MaxAge: time.Duration(cfg.WAL.MaxAgeMs) * time.Millisecond})
	if err != nil {
		eng.closeOpened()
		return nil, fmt.Errorf("open wal: %w", err)
	}

	if cfg.Credentials.Enabled {
		passphrase := os.Getenv(cfg.Credentials.PassphraseEnv)
		if passphrase != "" {
			eng.Vault, err = vault.Open(vault.Options{
				Path:             cfg.CredentialsDBPath(),
				Passphrase:       passphrase,
				MinPassphraseLen: cfg.Credentials.MinPassphraseLen,
			})
			if err != nil {
				eng.closeOpened()
				return nil, fmt.Errorf("open vault: %w", err)
			}
		} else {
			logging.BootWarn("credentials enabled but %s is unset; vault disabled", cfg.Credentials.PassphraseEnv)
		}
	}

	eng.Graph = graphstore.New(idx)
	eng.Procedures = procedurestore.New(idx)

	embedder, chatBackend, classifier := bootLLM(cfg)

	eng.Facts, err = factstore.New(factstore.Deps{
		Index:                    idx,
		Vector:                   eng.Vector,
		WAL:                      eng.WAL,
		Vault:                    eng.Vault,
		Embedder:                 embedder,
		Classifier:               classifier,
		Chat:                     chatBackend,
		FuzzyDedupe:              cfg.Store.FuzzyDedupe,
		ClassifyBeforeWrite:      cfg.Store.ClassifyBeforeWrite,
		DiscoveredCategoriesPath: cfg.DiscoveredCategoriesPath(),
	})
	if err != nil {
		eng.closeOpened()
		return nil, fmt.Errorf("boot factstore: %w", err)
	}

	eng.Recall = retrieval.New(retrieval.Deps{
		Index:         idx,
		Vector:        eng.Vector,
		Graph:         eng.Graph,
		Facts:         eng.Facts,
		Procedures:    eng.Procedures,
		Embedder:      embedder,
		Chat:          chatBackend,
		AutoRecall:    cfg.AutoRecall,
		GraphRecall:   cfg.Graph,
		MemoryTiering: cfg.MemoryTiering,
	})

	eng.Scheduler = lifecycle.New(eng.Facts, lifecycle.Hooks{
		ClassifyOtherFacts: eng.Facts.ClassifyOtherFacts,
		RebuildKeywords: func(ctx context.Context) error {
			return factstore.ReloadStopWords(cfg.LanguageKeywords.CustomKeywordsPath)
		},
		SweepProposals: func(ctx context.Context) error {
			_, err := eng.Facts.SweepExpiredProposals(time.Now())
			return err
		},
	})

	eng.Adapter = adapter.New(adapter.Deps{
		Recall:          eng.Recall,
		Facts:           eng.Facts,
		AutoCapture:     cfg.AutoCapture,
		CaptureMaxChars: cfg.CaptureMaxChars,
	})

	return eng, nil
}

// bootLLM constructs the Embedder/Chat/Classifier trio from cfg, logging and
// degrading to nil backends (FTS-only recall, conservative-ADD classify) on
// failure rather than refusing to boot the whole engine.
func bootLLM(cfg *config.Config) (llm.Embedder, llm.Chat, llm.Classifier) {
	llmCfg := llm.Config{
		Provider:        cfg.Embedding.Provider,
		OllamaEndpoint:  cfg.Embedding.OllamaEndpoint,
		OllamaModel:     cfg.Embedding.OllamaModel,
		OllamaChatModel: cfg.LLM.Model,
		GenAIAPIKey:     cfg.Embedding.GenAIAPIKey,
		GenAIModel:      cfg.Embedding.GenAIModel,
		GenAIChatModel:  cfg.LLM.Model,
		TaskType:        cfg.Embedding.TaskType,
		Timeout:         cfg.GetLLMTimeout(),
	}

	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		logging.BootWarn("embedder unavailable, recall falls back to FTS-only: %v", err)
		embedder = nil
	}

	chatBackend, err := llm.NewChat(llmCfg)
	if err != nil {
		logging.BootWarn("chat backend unavailable, classify/summarize features disabled: %v", err)
		chatBackend = nil
	}

	var classifier llm.Classifier
	if chatBackend != nil && cfg.Store.ClassifyBeforeWrite {
		classifier = llm.NewChatClassifier(chatBackend, cfg.Store.ClassifyModel)
	}

	return embedder, chatBackend, classifier
}

// StartLifecycle starts the background scheduler; callers should defer
// eng.Scheduler.Stop().
func (e *Engine) StartLifecycle(ctx context.Context) {
	e.Scheduler.Start(ctx)
}

// Close releases every resource Boot opened, in reverse dependency order.
func (e *Engine) Close() error {
	return e.closeOpened()
}

func (e *Engine) closeOpened() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.Scheduler != nil {
		e.Scheduler.Stop()
	}
	if e.Vault != nil {
		record(e.Vault.Close())
	}
	if e.WAL != nil {
		record(e.WAL.Close())
	}
	if e.Vector != nil {
		record(e.Vector.Close())
	}
	if e.Index != nil {
		record(e.Index.Close())
	}
	return firstErr
}
