package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDs overrides the run ID generator (for testing).
	// If nil, runs recorded with --db get UUIDv7 IDs.
	RunIDs engine.RunIDGenerator
}

// RunOutput is what run prints in JSON mode.
type RunOutput struct {
	Scenario string          `json:"scenario"`
	RunID    string          `json:"run_id,omitempty"`
	Result   *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run the calls of a scenario through the engine and print the trace,
the call results and any assertion failures.

With --db the run and its events are appended to the database under a
fresh run ID, so they can be inspected with trace and verified with
replay.

Example:
  extcall run ./scenarios/malloc_free.yaml
  extcall run ./scenarios/getc_syscall.yaml --db ./extcall.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the run in")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := setupLogging(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.CommandError(ErrCodeBadInput, err.Error())
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	runOpts := harness.RunOptions{Logger: logger, RunIDs: opts.RunIDs}
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, _, err := openStore(ctx, opts.Database)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, fmt.Sprintf("opening database: %v", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Store = st
		if runOpts.RunIDs == nil {
			runOpts.RunIDs = engine.UUIDv7Generator{}
		}
	}

	result, err := harness.RunWith(ctx, scenario, runOpts)
	if err != nil {
		return formatter.CommandError(ErrCodeScenario, err.Error())
	}

	out := RunOutput{Scenario: scenario.Name, Result: result}
	if result.Run != nil {
		out.RunID = result.Run.RunID
	}

	if formatter.IsJSON() {
		if result.Pass {
			return formatter.Success(out)
		}
		return formatter.Failure(out, ErrCodeScenario, fmt.Sprintf("scenario %s failed", scenario.Name), ExitFailure)
	}

	printRun(formatter, out)
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRun(formatter *OutputFormatter, out RunOutput) {
	w := formatter.Writer
	result := out.Result
	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	if out.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", out.RunID)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Trace (%d event(s)):\n", len(result.Trace))
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  [%d] step %d: %s\n", ev.Seq, ev.Step, ev.Event)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Results:")
	for i, r := range result.Results {
		fmt.Fprintf(w, "  %d: %s\n", i, r)
	}
	if result.ErrorCode != "" {
		fmt.Fprintf(w, "  stopped at step %d: %s\n", result.ErrorStep, result.ErrorCode)
	}
	fmt.Fprintln(w)

	if result.Pass {
		fmt.Fprintln(w, "✓ PASS")
		return
	}
	fmt.Fprintln(w, "✗ FAIL")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
