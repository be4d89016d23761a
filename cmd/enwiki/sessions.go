// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/enwiki/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect the import history database",
	Long: `Sessions lists past import runs from the history database. Use
subcommands to inspect one session's records, show aggregate statistics,
or delete a session.`,
	RunE: runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "List the note records of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate counts over the whole import history",
	RunE:  runSessionsStats,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "maximum sessions to list")
	sessionsShowCmd.Flags().String("status", "", "filter records by status: pending, completed, failed, skipped")
	sessionsShowCmd.Flags().Int("limit", 100, "maximum records to list")

	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsStatsCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	rootCmd.AddCommand(sessionsCmd)
}

func openHistory(cmd *cobra.Command) (*store.Store, error) {
	return store.Open(stringSetting(cmd, "db", "database", ""))
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := history.RecentSessions(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No import sessions recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-5s  %-11s  %-19s  %-30s  %s\n",
		"ID", "Status", "Started", "Space", "Done/Fail/Skip of Total")
	for _, s := range sessions {
		started := ""
		if !s.StartedAt.IsZero() {
			started = s.StartedAt.Format("2006-01-02 15:04:05")
		}
		space := s.TargetSpace
		if len(space) > 30 {
			space = space[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-5d  %-11s  %-19s  %-30s  %d/%d/%d of %d\n",
			s.ID, s.Status, started, space,
			s.CompletedNotes, s.FailedNotes, s.SkippedNotes, s.TotalNotes)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	sessionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}

	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	ctx := context.Background()
	sess, err := history.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}

	statusFilter, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	records, err := history.SessionRecords(ctx, sessionID, store.RecordStatus(statusFilter), limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Session %d: %s -> %s (%s)\n\n",
		sess.ID, sess.SourcePath, sess.TargetSpace, sess.Status)
	for _, r := range records {
		line := fmt.Sprintf("%-9s  %s", r.Status, r.NoteTitle)
		if r.ErrorMessage != "" {
			line += ": " + r.ErrorMessage
		} else if r.PageURL != "" {
			line += " -> " + r.PageURL
		}
		fmt.Fprintln(os.Stdout, line)
	}
	fmt.Fprintf(os.Stdout, "\n%d record(s)\n", len(records))
	return nil
}

func runSessionsStats(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	stats, err := history.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Sessions:  %d\n", stats.TotalSessions)
	fmt.Fprintf(os.Stdout, "Notes:     %d\n", stats.TotalNotes)
	fmt.Fprintf(os.Stdout, "Completed: %d\n", stats.Completed)
	fmt.Fprintf(os.Stdout, "Failed:    %d\n", stats.Failed)
	fmt.Fprintf(os.Stdout, "Skipped:   %d\n", stats.Skipped)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	sessionID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id %q", args[0])
	}

	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	if err := history.DeleteSession(context.Background(), sessionID); err != nil {
		return err
	}
	fmt.Printf("Session %d deleted.\n", sessionID)
	return nil
}
