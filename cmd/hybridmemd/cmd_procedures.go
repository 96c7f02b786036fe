package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	proceduresLimit          int
	proceduresReinforceBoost float64
)

var proceduresCmd = &cobra.Command{
	Use:   "procedures",
	Short: "Search stored tool-call recipes",
}

var proceduresSearchCmd = &cobra.Command{
	Use:   "search [task]",
	Short: "Find the best-matching procedure for a task description",
	Args:  cobra.ExactArgs(1),
	RunE:  runProceduresSearch,
}

func init() {
	proceduresSearchCmd.Flags().IntVar(&proceduresLimit, "limit", 3, "max procedures to return")
	proceduresSearchCmd.Flags().Float64Var(&proceduresReinforceBoost, "reinforce-boost", 0.1, "score boost added once to procedures reinforced at least once")
	proceduresCmd.AddCommand(proceduresSearchCmd)
}

func runProceduresSearch(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	procs, err := eng.Procedures.Search(args[0], proceduresLimit, proceduresReinforceBoost)
	if err != nil {
		return fmt.Errorf("procedures search: %w", err)
	}
	if len(procs) == 0 {
		fmt.Println("no matching procedures")
		return nil
	}
	for _, p := range procs {
		fmt.Printf("%s\t%.2f\t%s\n", p.ID, p.Confidence, p.TaskPattern)
	}
	return nil
}
