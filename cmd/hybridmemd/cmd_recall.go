package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/hybridmem/internal/retrieval"
)

var (
	recallLimit    int
	recallMinScore float64
)

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Run the retrieval pipeline and print the formatted recall block",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().IntVar(&recallLimit, "limit", 0, "max candidates to pack (0 = config default)")
	recallCmd.Flags().Float64Var(&recallMinScore, "min-score", 0, "minimum candidate score")
}

func runRecall(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	block, err := eng.Recall.Recall(context.Background(), retrieval.Options{
		Query:    args[0],
		Limit:    recallLimit,
		MinScore: recallMinScore,
	})
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	fmt.Println(block)
	return nil
}
