package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openclaw/hybridmem/internal/factstore"
)

var (
	storeCategory   string
	storeImportance float64
	storeConfidence float64
	storeEntity     string
	storeKey        string
	storeValue      string
)

var storeCmd = &cobra.Command{
	Use:   "store [text]",
	Short: "Store a fact (or, if entity/key/value are credential-shaped, a vault secret)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStore,
}

func init() {
	storeCmd.Flags().StringVar(&storeCategory, "category", "fact", "fact category")
	storeCmd.Flags().Float64Var(&storeImportance, "importance", 0.5, "importance in [0,1]")
	storeCmd.Flags().Float64Var(&storeConfidence, "confidence", 0.8, "confidence in [0,1]")
	storeCmd.Flags().StringVar(&storeEntity, "entity", "", "entity this fact is about (service name for credentials)")
	storeCmd.Flags().StringVar(&storeKey, "key", "", "fact key (credential type for credentials)")
	storeCmd.Flags().StringVar(&storeValue, "value", "", "fact value (secret for credentials)")
}

func runStore(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	f, err := eng.Facts.Store(ctx, factStoreArgsFromFlags(args[0]))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	logger.Info("stored fact", zap.String("id", f.ID), zap.String("text", f.Text))
	fmt.Printf("%s\n", f.ID)
	return nil
}

func factStoreArgsFromFlags(text string) factstore.StoreArgs {
	return factstore.StoreArgs{
		Text:       text,
		Category:   storeCategory,
		Entity:     storeEntity,
		Key:        storeKey,
		Value:      storeValue,
		Importance: storeImportance,
		Confidence: storeConfidence,
		Source:     "cli",
	}
}
