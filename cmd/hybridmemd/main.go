// Command hybridmemd is a thin CLI driver over the hybridmem core: store,
// recall, reinforce, supersede, vault, procedure search, checkpoint
// save/get, and a serve mode that runs the background scheduler. It exists
// the way cmd/nerd exists over internal/store in the teacher repo this
// project is built from — a smoke test harness over the core, not part of
// the core itself.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openclaw/hybridmem/internal/config"
	"github.com/openclaw/hybridmem/internal/engine"
	"github.com/openclaw/hybridmem/internal/logging"
)

var (
	configPath string
	memoryRoot string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hybridmemd",
	Short: "hybridmem - hybrid memory store for conversational agents",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to hybridmem.yaml (default: <memory-root>/hybridmem.yaml)")
	rootCmd.PersistentFlags().StringVar(&memoryRoot, "memory-root", "", "override the configured memory root directory")

	rootCmd.AddCommand(
		storeCmd,
		recallCmd,
		reinforceCmd,
		supersedeCmd,
		vaultCmd,
		proceduresCmd,
		checkpointCmd,
		serveCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves hybridmem.yaml (honoring --config/--memory-root
// overrides) and initializes the file-based logging system against it.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if memoryRoot != "" {
			path = filepath.Join(memoryRoot, "hybridmem.yaml")
		} else {
			home, _ := os.UserHomeDir()
			path = filepath.Join(home, ".openclaw", "memory", "hybridmem.yaml")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if memoryRoot != "" {
		cfg.MemoryRoot = memoryRoot
	}

	if err := logging.Initialize(cfg.MemoryRoot, ptrLoggingConfig(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging init failed: %v\n", err)
	}
	return cfg, nil
}

func ptrLoggingConfig(cfg *config.Config) *logging.LoggingConfig {
	lc := cfg.Logging.ToLoggingConfig()
	return &lc
}

// bootEngine loads config and boots the full engine stack; callers must
// defer eng.Close().
func bootEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.Boot(cfg)
}
