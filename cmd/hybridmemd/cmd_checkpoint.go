package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/hybridmem/internal/store"
)

var (
	checkpointID              string
	checkpointExpectedOutcome string
	checkpointWorkingFiles    string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Save and retrieve ephemeral session checkpoints (4h TTL)",
}

var checkpointSaveCmd = &cobra.Command{
	Use:   "save [intent] [state]",
	Short: "Save a checkpoint of in-progress agent session state",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheckpointSave,
}

var checkpointGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Retrieve a saved checkpoint by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointGet,
}

func init() {
	checkpointSaveCmd.Flags().StringVar(&checkpointID, "id", "", "checkpoint id (default: generated)")
	checkpointSaveCmd.Flags().StringVar(&checkpointExpectedOutcome, "expected-outcome", "", "what success looks like")
	checkpointSaveCmd.Flags().StringVar(&checkpointWorkingFiles, "working-files", "", "comma-separated file paths")

	checkpointCmd.AddCommand(checkpointSaveCmd, checkpointGetCmd)
}

func runCheckpointSave(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	var files []string
	if checkpointWorkingFiles != "" {
		files = strings.Split(checkpointWorkingFiles, ",")
	}

	c, err := eng.Facts.SaveCheckpoint(&store.Checkpoint{
		ID:              checkpointID,
		Intent:          args[0],
		State:           args[1],
		ExpectedOutcome: checkpointExpectedOutcome,
		WorkingFiles:    files,
	})
	if err != nil {
		return fmt.Errorf("checkpoint save: %w", err)
	}

	fmt.Println(c.ID)
	return nil
}

func runCheckpointGet(cmd *cobra.Command, args []string) error {
	eng, err := bootEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	c, err := eng.Facts.GetCheckpoint(args[0])
	if err != nil {
		return fmt.Errorf("checkpoint get: %w", err)
	}

	fmt.Printf("intent: %s\nstate: %s\n", c.Intent, c.State)
	if c.ExpectedOutcome != "" {
		fmt.Printf("expected outcome: %s\n", c.ExpectedOutcome)
	}
	if len(c.WorkingFiles) > 0 {
		fmt.Printf("working files: %s\n", strings.Join(c.WorkingFiles, ", "))
	}
	return nil
}
