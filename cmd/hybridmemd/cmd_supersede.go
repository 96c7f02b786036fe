package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var supersedeReplacement string

var supersedeCmd = &cobra.Command{
	Use:   "supersede [fact-id]",
	Short: "Retract a fact, optionally pointing at the fact that replaces it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSupersede,
}

func init() {
	supersedeCmd.Flags().StringVar(&supersedeReplacement, "by", "", "id of the replacement fact (empty for a bare retraction)")
}

func runSupersede(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Facts.Supersede(args[0], supersedeReplacement); err != nil {
		return fmt.Errorf("supersede: %w", err)
	}
	fmt.Printf("superseded %s\n", args[0])
	return nil
}
