package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/queryir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Kind     string // optional - filter to one event kind
	Step     int64  // optional - filter to one call; -1 for all
	Property string // optional - filter violations to one property
}

// TraceEvent is one stored event in the timeline.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Step  int64  `json:"step"`
	Kind  string `json:"kind"`
	Event string `json:"event"`
	ID    string `json:"id"`
}

// TraceViolation is one stored contract violation.
type TraceViolation struct {
	Seq      int64  `json:"seq"`
	Op       string `json:"op"`
	Property string `json:"property"`
	Message  string `json:"message"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run        ir.Run           `json:"run"`
	Timeline   []TraceEvent     `json:"timeline"`
	Violations []TraceViolation `json:"violations"`
	Stats      TraceStats       `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
	Steps       int            `json:"steps"` // distinct calls that emitted events
	Violations  int            `json:"violations"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the stored trace of a run",
		Long: `Show what a recorded run observed.

The output includes:
- Timeline: the run's events in seq order, with the call that emitted them
- Violations: contract violations recorded by a check run
- Stats: event counts per kind

Examples:
  extcall trace --db ./extcall.db --run 0190...
  extcall trace --db ./extcall.db --run 0190... --kind vload
  extcall trace --db ./extcall.db --run 0190... --step 3
  extcall trace --db ./extcall.db --run 0190... --property determinism
  extcall trace --db ./extcall.db --run 0190... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (vload, vstore, syscall, annot)")
	cmd.Flags().Int64Var(&opts.Step, "step", -1, "filter to the events of one call")
	cmd.Flags().StringVar(&opts.Property, "property", "", "filter violations to one contract property")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err.Error())
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("run %s: %v", opts.RunID, err))
	}
	eventQuery, violationQuery := traceQueries(opts, run.ID)
	recs, err := st.QueryEvents(ctx, eventQuery)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, fmt.Sprintf("failed to read events: %v", err))
	}
	violations, err := st.QueryViolations(ctx, violationQuery)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, fmt.Sprintf("failed to read violations: %v", err))
	}

	timeline, err := buildTimeline(recs)
	if err != nil {
		return formatter.CommandError(ErrCodeCorrupt, err.Error())
	}

	result := TraceResult{
		Run:        run,
		Timeline:   timeline,
		Violations: make([]TraceViolation, 0, len(violations)),
		Stats:      buildStats(timeline, len(violations)),
	}
	for _, v := range violations {
		result.Violations = append(result.Violations, TraceViolation{
			Seq:      v.Seq,
			Op:       v.Op,
			Property: v.Property,
			Message:  v.Message,
		})
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// traceQueries builds the store queries for the run's events and
// violations from the filter flags.
func traceQueries(opts *TraceOptions, runID string) (eventQuery, violationQuery queryir.Select) {
	run := queryir.Equals{Field: "run_id", Value: ir.IRString(runID)}

	var kind, step, property queryir.Predicate
	if opts.Kind != "" {
		kind = queryir.Equals{Field: "kind", Value: ir.IRString(opts.Kind)}
	}
	if opts.Step >= 0 {
		step = queryir.Equals{Field: "step", Value: ir.IRInt(opts.Step)}
	}
	if opts.Property != "" {
		property = queryir.Equals{Field: "property", Value: ir.IRString(opts.Property)}
	}

	eventQuery = queryir.Select{From: queryir.Events, Filter: queryir.Where(run, kind, step)}
	violationQuery = queryir.Select{From: queryir.Violations, Filter: queryir.Where(run, property)}
	return eventQuery, violationQuery
}

// buildTimeline decodes stored events.
func buildTimeline(recs []ir.EventRecord) ([]TraceEvent, error) {
	timeline := []TraceEvent{}
	for _, rec := range recs {
		ev, err := events.Decode(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", truncateID(rec.ID), err)
		}
		timeline = append(timeline, TraceEvent{
			Seq:   rec.Seq,
			Step:  rec.Step,
			Kind:  rec.Kind,
			Event: ev.String(),
			ID:    rec.ID,
		})
	}
	return timeline, nil
}

func buildStats(timeline []TraceEvent, violations int) TraceStats {
	stats := TraceStats{
		TotalEvents: len(timeline),
		ByKind:      map[string]int{},
		Violations:  violations,
	}
	steps := map[int64]bool{}
	for _, ev := range timeline {
		stats.ByKind[ev.Kind]++
		steps[ev.Step] = true
	}
	stats.Steps = len(steps)
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Name: %s, seed %d, engine %s\n", result.Run.Name, result.Run.Seed, result.Run.EngineVersion)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%d] step %d: %s\n", ev.Seq, ev.Step, ev.Event)
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(ev.ID))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Violations ===")
	if len(result.Violations) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, v := range result.Violations {
		fmt.Fprintf(w, "  [%d] %s violates %s: %s\n", v.Seq, v.Op, v.Property, v.Message)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-12s %d\n", k+":", result.Stats.ByKind[k])
	}
	fmt.Fprintf(w, "  Steps:       %d\n", result.Stats.Steps)
	fmt.Fprintf(w, "  Violations:  %d\n", result.Stats.Violations)

	return nil
}

// truncateID shortens a content hash for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
