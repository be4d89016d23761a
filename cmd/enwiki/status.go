// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/enwiki/internal/progress"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of the current or last import run",
	Long: `Status reads the progress state file and prints a per-status summary,
plus the titles of notes that failed so they can be retried with
"enwiki import --retry-failed".`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("failed", false, "list only the failed notes")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	stateFile := stringSetting(cmd, "state-file", "state_file", "")

	tracker := progress.NewTracker(stateFile)
	if !tracker.Load() {
		fmt.Println("No import in progress.")
		return nil
	}

	state := tracker.State()
	onlyFailed, _ := cmd.Flags().GetBool("failed")

	if !onlyFailed {
		fmt.Fprintf(os.Stdout, "Wiki:    %s\n", state.WikiURL)
		fmt.Fprintf(os.Stdout, "Space:   %s\n", state.Space)
		fmt.Fprintf(os.Stdout, "Started: %s\n", state.StartedAt)
		fmt.Fprintf(os.Stdout, "Updated: %s\n", state.LastUpdated)
		fmt.Fprintln(os.Stdout, state.Summary())
	}

	failed := tracker.FailedNotes()
	if len(failed) > 0 {
		fmt.Fprintf(os.Stdout, "\nFailed notes (%d):\n", len(failed))
		for _, note := range failed {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", note.Title, note.Error)
		}
	}
	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard saved import progress",
	Long: `Reset deletes the progress state file so the next import starts from
scratch. The import history database is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stateFile := stringSetting(cmd, "state-file", "state_file", "")
		if err := progress.NewTracker(stateFile).Reset(); err != nil {
			return err
		}
		fmt.Println("Progress state cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
