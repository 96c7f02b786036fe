package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reinforceQuote string

var reinforceCmd = &cobra.Command{
	Use:   "reinforce [fact-id]",
	Short: "Reinforce a fact with a supporting quote, promoting its confidence past threshold",
	Args:  cobra.ExactArgs(1),
	RunE:  runReinforce,
}

func init() {
	reinforceCmd.Flags().StringVar(&reinforceQuote, "quote", "", "the quote that re-confirms this fact")
}

func runReinforce(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Facts.ReinforceFact(args[0], reinforceQuote); err != nil {
		return fmt.Errorf("reinforce: %w", err)
	}
	fmt.Printf("reinforced %s\n", args[0])
	return nil
}
