package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/ir"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
}

// RunSummary is one line of the runs listing.
type RunSummary struct {
	ir.Run
	Events     int `json:"events"`
	Violations int `json:"violations"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Long: `List the runs recorded in a database, oldest first, with their
event and violation counts.

Example:
  extcall runs --db ./extcall.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, fmt.Sprintf("failed to list runs: %v", err))
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		recs, err := st.ReadEvents(ctx, run.ID)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, err.Error())
		}
		violations, err := st.ReadViolations(ctx, run.ID)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, err.Error())
		}
		summaries = append(summaries, RunSummary{Run: run, Events: len(recs), Violations: len(violations)})
	}

	if formatter.IsJSON() {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %-8s seq %-4d seed %-6d %d event(s), %d violation(s)\n",
			s.ID, s.Name, s.Seq, s.Seed, s.Events, s.Violations)
	}
	return nil
}
