package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the verification result for a single run.
type ReplayRunResult struct {
	RunID      string   `json:"run_id"`
	Name       string   `json:"name"`
	Events     int      `json:"events"`
	Violations int      `json:"violations"`
	TraceID    string   `json:"trace_id,omitempty"`
	Verified   bool     `json:"verified"`
	Problems   []string `json:"problems,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs        []ReplayRunResult `json:"runs"`
	TotalRuns   int               `json:"total_runs"`
	AllVerified bool              `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-read stored traces and verify them",
		Long: `Re-read every stored run and verify its trace.

For each event the content-addressed ID is recomputed, the payload is
decoded and re-encoded, and seqs are checked to increase after the run's
own seq. Each verified trace is reported with its trace ID, which is the
same for runs that produced the same events.

Exit codes:
  0 - All runs verified
  1 - A stored trace does not verify
  2 - Command error (database not found, etc.)

Examples:
  extcall replay --db ./extcall.db
  extcall replay --db ./extcall.db --run 0190...
  extcall replay --db ./extcall.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "verify a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	var runs []ir.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("run %s: %v", opts.RunID, err))
		}
		runs = []ir.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, fmt.Sprintf("failed to list runs: %v", err))
		}
	}

	result := ReplayResult{
		Runs:        make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:   len(runs),
		AllVerified: true,
	}
	for _, run := range runs {
		rr, err := verifyRun(ctx, st, run)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, fmt.Sprintf("failed to verify run %s: %v", run.ID, err))
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Verified {
			result.AllVerified = false
		}
	}

	message := "trace verification failed"
	if formatter.IsJSON() {
		if !result.AllVerified {
			return formatter.Failure(result, ErrCodeCorrupt, message, ExitFailure)
		}
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	fmt.Fprintf(w, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, rr := range result.Runs {
		status := "✓"
		if !rr.Verified {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, rr.RunID, rr.Name)
		fmt.Fprintf(w, "  Events: %d, violations: %d\n", rr.Events, rr.Violations)
		if opts.Verbose && rr.TraceID != "" {
			fmt.Fprintf(w, "  Trace ID: %s\n", rr.TraceID)
		}
		for _, p := range rr.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintln(w)
	}

	if !result.AllVerified {
		fmt.Fprintln(w, "✗ Trace verification failed")
		return NewExitError(ExitFailure, message)
	}
	fmt.Fprintln(w, "✓ All traces verified")
	return nil
}

// verifyRun checks every stored event of run. Problems are reported in
// the result; the error is for store failures.
func verifyRun(ctx context.Context, st *store.Store, run ir.Run) (ReplayRunResult, error) {
	rr := ReplayRunResult{RunID: run.ID, Name: run.Name}

	recs, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return rr, err
	}
	violations, err := st.ReadViolations(ctx, run.ID)
	if err != nil {
		return rr, err
	}
	rr.Events = len(recs)
	rr.Violations = len(violations)

	last := run.Seq
	payloads := make([]ir.IRObject, 0, len(recs))
	for _, rec := range recs {
		rr.Problems = append(rr.Problems, verifyEvent(rec, last)...)
		last = rec.Seq
		payloads = append(payloads, rec.Payload)
	}

	rr.Verified = len(rr.Problems) == 0
	if rr.Verified {
		if rr.TraceID, err = ir.TraceID(payloads); err != nil {
			return rr, err
		}
	}
	return rr, nil
}

func verifyEvent(rec ir.EventRecord, prevSeq int64) []string {
	var problems []string
	if rec.Seq <= prevSeq {
		problems = append(problems, fmt.Sprintf("seq %d: not after %d", rec.Seq, prevSeq))
	}

	id, err := ir.EventID(rec.RunID, rec.Step, rec.Seq, rec.Payload)
	if err != nil {
		return append(problems, fmt.Sprintf("seq %d: %v", rec.Seq, err))
	}
	if id != rec.ID {
		problems = append(problems, fmt.Sprintf("seq %d: id %s does not match content (%s)", rec.Seq, rec.ID, id))
	}

	ev, err := events.Decode(rec.Payload)
	if err != nil {
		return append(problems, fmt.Sprintf("seq %d: %v", rec.Seq, err))
	}
	if kind := events.Kind(ev); kind != rec.Kind {
		problems = append(problems, fmt.Sprintf("seq %d: kind %s, payload is %s", rec.Seq, rec.Kind, kind))
	}
	stored, err1 := ir.MarshalCanonical(rec.Payload)
	again, err2 := ir.MarshalCanonical(events.Encode(ev))
	if err := errors.Join(err1, err2); err != nil {
		return append(problems, fmt.Sprintf("seq %d: %v", rec.Seq, err))
	}
	if !bytes.Equal(stored, again) {
		problems = append(problems, fmt.Sprintf("seq %d: payload does not re-encode to itself", rec.Seq))
	}
	return problems
}

// openExistingStore opens a database that must already exist; the
// read-only commands never create one.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}
	return store.OpenExisting(path)
}
