package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/history"
	"github.com/neuraxis/ctreport/internal/report"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List or inspect recorded analysis runs",
		Long: `Runs reads the local run history database.

Without arguments it lists recent runs, newest first. With a run ID it
prints that run's full stored result as JSON.

Examples:
  # List the last 20 runs
  ctreport runs

  # List the last 5 runs
  ctreport runs --limit 5

  # Print one stored run
  ctreport runs 42`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().String("data-dir", "", "Run history directory (default: XDG data directory)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = config.XDGDataDir()
	}

	store, err := history.Open(dataDir, history.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no run history available: %w", err)
	}
	defer store.Close()

	if len(args) == 1 {
		return showRun(cmd, store, args[0])
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	return listRuns(cmd, store, limit)
}

// listRuns prints recent runs as a table.
func listRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	records, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tSTATUS\tABNORMAL\tANALYZED\tEXCLUDED")
	for _, r := range records {
		abnormal := "no"
		if r.Abnormal {
			abnormal = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%d\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Status,
			abnormal,
			r.InstancesAnalyzed,
			r.InstancesCollected,
			r.FailureCount,
		)
	}
	return w.Flush()
}

// showRun prints one stored run as pretty JSON.
func showRun(cmd *cobra.Command, store *history.Store, arg string) error {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return fmt.Errorf("invalid run ID %q", arg)
	}

	result, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("run %d not found", id)
	}

	w := report.NewJSONWriter(cmd.OutOrStdout(),
		report.WithPrettyPrint(), report.WithVersion(getVersion()))
	_, err = w.Write(result)
	return err
}
