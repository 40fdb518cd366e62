package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/extcall/internal/compiler"
	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/store"
	"github.com/roach88/extcall/internal/testutil"
)

// Harness is the test execution engine.
// By default it runs scenarios with a fixed run ID and a fresh clock, so
// the same scenario always stores the same events.
type Harness struct {
	scenario *Scenario
	env      *compiler.Environment
	ge       *genv.Globalenv
	hooks    extcall.Hooks
	calls    []engine.Call
	runIDs   engine.RunIDGenerator
	logger   *slog.Logger
}

// RunOptions configures RunWith.
type RunOptions struct {
	// Store records the run. Nil runs against a fresh in-memory store.
	Store *store.Store
	// RunIDs names the run. Nil uses the scenario's fixed run ID.
	RunIDs engine.RunIDGenerator
	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the scenario's environment and build its hooks
// 2. Run every call through the engine, recording events in the store
// 3. Check the run ended as expected (success or the expected error)
// 4. Read the trace back from the store
// 5. Evaluate assertions and return the result
//
// The returned error is for scenarios that cannot run at all; failed
// expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWith(ctx, scenario, RunOptions{})
}

// RunWith is Run with a caller-provided store, run IDs and logger. Seqs
// continue from the last one in the store.
func RunWith(ctx context.Context, scenario *Scenario, opts RunOptions) (*Result, error) {
	h, err := newHarness(scenario, opts)
	if err != nil {
		return nil, err
	}

	st := opts.Store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last seq: %w", err)
	}

	answers, err := parseAnswers(scenario.Answers)
	if err != nil {
		return nil, err
	}

	res, runErr := h.execute(ctx, answers,
		engine.WithStore(st),
		engine.WithClock(engine.NewClockAt(last)),
	)

	result := NewResult()
	result.Env = h.ge
	result.Run = res
	if err := h.checkEnding(runErr, result); err != nil {
		return nil, err
	}

	if res != nil {
		for _, v := range res.Results {
			result.Results = append(result.Results, fmt.Sprint(v))
		}
		recs, err := st.ReadEvents(ctx, res.RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}
		for _, rec := range recs {
			ev, err := events.Decode(rec.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to decode event %s: %w", rec.ID, err)
			}
			result.AddTraceEvent(rec, ev.String())
		}
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Replay: h.replay,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(scenario *Scenario, opts RunOptions) (*Harness, error) {
	env, err := LoadEnvironment(scenario.Env)
	if err != nil {
		return nil, err
	}
	ge, err := env.Globalenv()
	if err != nil {
		return nil, err
	}
	hooks, err := Hooks(env)
	if err != nil {
		return nil, fmt.Errorf("failed to build hooks: %w", err)
	}

	calls := make([]engine.Call, 0, len(scenario.Calls))
	for i, step := range scenario.Calls {
		ef, err := step.EF(env)
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		args, err := ParseArgs(step.Args)
		if err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
		calls = append(calls, engine.Call{EF: ef, Args: args, Dest: step.Dest})
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = testutil.NewFixedRunID(scenario.RunID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}

	return &Harness{
		scenario: scenario,
		env:      env,
		ge:       ge,
		hooks:    hooks,
		calls:    calls,
		runIDs:   runIDs,
		logger:   logger,
	}, nil
}

// execute runs the scenario's calls from the initial memory with answers
// feeding the oracle.
func (h *Harness) execute(ctx context.Context, answers []events.Eventval, opts ...engine.EngineOption) (*engine.Result, error) {
	m, err := h.ge.InitMem()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory: %w", err)
	}
	opts = append([]engine.EngineOption{
		engine.WithClock(engine.NewClock()),
		engine.WithRunIDs(h.runIDs),
		engine.WithOracle(NewAnswers(answers...)),
		engine.WithLogger(h.logger),
		engine.WithFrameSize(h.scenario.FrameSize),
		engine.WithRunName(h.scenario.Name, 0),
	}, opts...)
	eng := engine.New(h.ge, h.hooks, opts...)
	return eng.Run(ctx, m, h.calls)
}

// replay reruns the scenario without a store, answering queries from
// answers instead.
func (h *Harness) replay(ctx context.Context, answers []string) (events.Trace, error) {
	evs, err := parseAnswers(answers)
	if err != nil {
		return nil, err
	}
	res, err := h.execute(ctx, evs)
	if err != nil {
		return nil, err
	}
	return res.Trace, nil
}

// checkEnding compares how the run ended with the scenario's error
// clause. Errors other than runtime errors abort the scenario.
func (h *Harness) checkEnding(runErr error, result *Result) error {
	var rerr *engine.RuntimeError
	if runErr != nil && !errors.As(runErr, &rerr) {
		return fmt.Errorf("failed to run scenario: %w", runErr)
	}
	if rerr != nil {
		result.ErrorCode = string(rerr.Code)
		result.ErrorStep = rerr.Step
	}

	want := h.scenario.Error
	switch {
	case want == nil && rerr != nil:
		result.AddError(fmt.Sprintf("run failed: %v", rerr))
	case want != nil && rerr == nil:
		result.AddError(fmt.Sprintf("expected %s at step %d, run succeeded", want.Code, want.Step))
	case want != nil && (string(rerr.Code) != want.Code || rerr.Step != want.Step):
		result.AddError(fmt.Sprintf("expected %s at step %d, got %s at step %d",
			want.Code, want.Step, rerr.Code, rerr.Step))
	}
	return nil
}

func parseAnswers(ss []string) ([]events.Eventval, error) {
	evs := make([]events.Eventval, 0, len(ss))
	for i, s := range ss {
		ev, err := ParseEventval(s)
		if err != nil {
			return nil, fmt.Errorf("answers[%d]: %w", i, err)
		}
		evs = append(evs, ev)
	}
	return evs, nil
}
