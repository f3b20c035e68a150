// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/nbforge/internal/history"
	"github.com/pdiddy/nbforge/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded notebook runs",
	Long: `History queries the local run log. Every non-dry run is recorded with
its paths, parameters, status, and timing; use subcommands to list recent
runs, show one in full, search the log, or prune old records.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	hist, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer hist.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	status, _ := cmd.Flags().GetString("status")
	since, _ := cmd.Flags().GetDuration("since")

	opts := history.ListOptions{
		Limit:  limit,
		Status: types.RunStatus(status),
	}
	if since > 0 {
		opts.Since = time.Now().Add(-since)
	}

	runs, err := hist.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRunsOutput(runs, jsonOutput)
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one recorded run in full",
	Long: `Show prints every recorded field of a run, including the injected
parameters JSON. A unique ID prefix of at least four characters is enough.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	hist, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer hist.Close()

	rec, err := hist.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:          %s\n", rec.ID)
	fmt.Printf("Status:      %s\n", rec.Status)
	fmt.Printf("Input:       %s\n", rec.InputPath)
	if rec.OutputPath != "" {
		fmt.Printf("Output:      %s\n", rec.OutputPath)
	}
	fmt.Printf("Engine:      %s\n", rec.Engine)
	if rec.Kernel != "" {
		fmt.Printf("Kernel:      %s\n", rec.Kernel)
	}
	if rec.Language != "" {
		fmt.Printf("Language:    %s\n", rec.Language)
	}
	if rec.Parameters != "" {
		fmt.Printf("Parameters:  %s\n", rec.Parameters)
	}
	if len(rec.ExtractTags) > 0 {
		fmt.Printf("Extracted:   %s\n", strings.Join(rec.ExtractTags, ", "))
	}
	if rec.ArtifactDir != "" {
		fmt.Printf("Artifacts:   %s\n", rec.ArtifactDir)
	}
	fmt.Printf("Started:     %s\n", rec.StartedAt.Local().Format(time.RFC3339))
	fmt.Printf("Finished:    %s\n", rec.FinishedAt.Local().Format(time.RFC3339))
	fmt.Printf("Duration:    %s\n", rec.Duration.Round(time.Millisecond))
	if rec.Error != "" {
		fmt.Printf("Error:\n%s\n", rec.Error)
	}
	return nil
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over recorded runs",
	Long: `Search matches the query against recorded input paths, parameters,
statuses, and error text, best matches first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	hist, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer hist.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := hist.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRunsOutput(runs, jsonOutput)
}

// --- prune subcommand ---

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete run records older than a cutoff",
	RunE:  runHistoryPrune,
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("--older-than is required (e.g. --older-than 720h)")
	}

	hist, err := openHistoryStrict()
	if err != nil {
		return err
	}
	defer hist.Close()

	n, err := hist.Prune(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d run(s)\n", n)
	return nil
}

// --- shared helpers ---

// openHistoryStrict opens the history database for querying; unlike the run
// path, a missing or unopenable database is an error here.
func openHistoryStrict() (*history.Store, error) {
	path := pipelineConfig().History.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func formatRunsOutput(runs []types.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-11s  %-19s  %-10s  %-35s  %s\n",
		"ID", "Status", "Started", "Duration", "Input", "Output")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		input := r.InputPath
		if len(input) > 35 {
			input = input[:32] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-11s  %-19s  %-10s  %-35s  %s\n",
			id, r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond),
			input, r.OutputPath)
	}

	fmt.Fprintf(os.Stdout, "\n%d run(s)\n", len(runs))
	return nil
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum runs to list")
	historyListCmd.Flags().String("status", "", "filter by status: succeeded, failed, or dead-kernel")
	historyListCmd.Flags().Duration("since", 0, "only runs started within this window (e.g. 24h)")
	historyListCmd.Flags().Bool("json", false, "output runs as JSON")

	historySearchCmd.Flags().Int("limit", 20, "maximum runs to return")
	historySearchCmd.Flags().Bool("json", false, "output runs as JSON")

	historyPruneCmd.Flags().Duration("older-than", 0, "delete runs started earlier than now minus this duration")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyPruneCmd)

	rootCmd.AddCommand(historyCmd)
}
