package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/builtinarg"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/ir"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/store"
	"github.com/roach88/extcall/internal/values"
)

// DefaultMaxSteps is the default maximum number of calls per run.
const DefaultMaxSteps = 1000

// Call is one external call of a run.
type Call struct {
	EF   ast.ExternalFunction
	Args []builtinarg.Arg[string]
	// Dest names the local binding receiving the result; empty discards it.
	Dest string
}

// Result is the state after a run. On error it describes the run up to the
// last successful call.
type Result struct {
	RunID   string
	Trace   events.Trace
	Mem     *mem.Mem
	Results []values.Val // One per successful call
	Locals  map[string]values.Val
	SP      values.Val // Frame pointer of the run
}

// Engine runs calls against one global environment.
//
// INVARIANTS:
//   - Calls of a run execute in order on the calling goroutine
//   - A call with no outcome contributes nothing to the result
//   - Every stored event of a run has a seq above the run's seq
type Engine struct {
	ge     genv.Env
	hooks  extcall.Hooks
	store  *store.Store
	clock  *Clock
	ids    RunIDGenerator
	oracle extcall.Oracle
	logger *slog.Logger

	maxSteps  int
	maxAlloc  int64
	frameSize int64
	name      string
	seed      int64
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxSteps sets the maximum calls per run.
//
// Default: 1000 steps (DefaultMaxSteps)
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithStore records runs and their events in s.
func WithStore(s *store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithClock stamps runs and events from c. Used to resume numbering after
// the last seq of an existing store.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDs names runs with g. Default: UUIDv7Generator.
func WithRunIDs(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithOracle answers the events of runs with o. Default:
// extcall.DefaultOracle.
func WithOracle(o extcall.Oracle) EngineOption {
	return func(e *Engine) {
		e.oracle = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxAllocSize bounds malloc. Default: extcall.DefaultMaxAllocSize.
func WithMaxAllocSize(n int64) EngineOption {
	return func(e *Engine) {
		e.maxAlloc = n
	}
}

// WithFrameSize sets the size of the stack frame allocated for each run.
func WithFrameSize(n int64) EngineOption {
	return func(e *Engine) {
		e.frameSize = n
	}
}

// WithRunName labels stored runs.
func WithRunName(name string, seed int64) EngineOption {
	return func(e *Engine) {
		e.name = name
		e.seed = seed
	}
}

// New creates an Engine for environment ge. hooks may be nil when no
// opaque externals are called.
func New(ge genv.Env, hooks extcall.Hooks, opts ...EngineOption) *Engine {
	e := &Engine{
		ge:       ge,
		hooks:    hooks,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		oracle:   extcall.DefaultOracle,
		maxSteps: DefaultMaxSteps,
		name:     "run",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Run executes calls in order starting from memory m.
//
// A stack frame of the configured size is allocated first; its address is
// the frame pointer for stack-relative arguments. Each successful call's
// result is bound to its Dest, when set, for later calls to read.
//
// Run stops at the first failing call and returns the result so far
// together with a *RuntimeError, or ctx.Err() when ctx is cancelled
// between calls. Store failures are returned wrapped.
func (e *Engine) Run(ctx context.Context, m *mem.Mem, calls []Call) (*Result, error) {
	runID := e.ids.Generate()
	log := e.logger.With("run", runID)

	if e.store != nil {
		run := ir.Run{
			ID:            runID,
			Name:          e.name,
			Seed:          e.seed,
			Seq:           e.clock.Next(),
			EngineVersion: ir.EngineVersion,
		}
		if err := e.store.WriteRun(ctx, run); err != nil {
			return nil, fmt.Errorf("start run %s: %w", runID, err)
		}
	}

	m, frame := m.Alloc(0, e.frameSize)
	res := &Result{
		RunID:  runID,
		Trace:  events.E0(),
		Mem:    m,
		Locals: map[string]values.Val{},
		SP:     values.Vptr{B: frame},
	}
	quota := NewQuotaEnforcer(e.maxSteps)
	log.Debug("run starting", "calls", len(calls), "frame_size", e.frameSize)

	for step, c := range calls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.step(ctx, log, quota, res, step, c); err != nil {
			return res, err
		}
	}

	log.Info("run complete", "steps", len(calls), "events", len(res.Trace))
	return res, nil
}

// step runs one call and, on success, folds its outcome into res.
func (e *Engine) step(ctx context.Context, log *slog.Logger, quota *QuotaEnforcer, res *Result, step int, c Call) error {
	op := c.EF.Name()
	if err := quota.Check(res.RunID); err != nil {
		log.Error("max steps quota exceeded",
			"step", step,
			"steps", quota.Current(),
			"limit", quota.MaxSteps(),
		)
		return NewQuotaError(res.RunID, step, err.(*StepsExceededError))
	}

	sem, err := extcall.Resolve(c.EF, e.hooks, e.maxAlloc)
	if err != nil {
		log.Warn("unknown external", "step", step, "op", op, "error", err)
		return NewUnknownExternalError(res.RunID, step, op, err)
	}
	if want := len(sem.Signature().Args); len(c.Args) != want {
		return NewArityError(res.RunID, step, op, len(c.Args), want)
	}

	args, ok := builtinarg.EvalList(e.ge, builtinarg.MapLocals(res.Locals), res.SP, res.Mem, c.Args)
	if !ok {
		log.Warn("argument evaluation failed", "step", step, "op", op)
		return NewBadArgumentError(res.RunID, step, op)
	}

	log.Debug("dispatching call", "step", step, "op", op, "args", args)
	out, ok := sem.Step(e.ge, args, res.Mem, e.oracle)
	if !ok {
		log.Warn("call has no outcome", "step", step, "op", op, "args", args)
		return NewNoOutcomeError(res.RunID, step, op)
	}

	if err := e.record(ctx, res.RunID, step, out.Trace); err != nil {
		return err
	}

	res.Mem = out.Mem
	res.Trace = events.Eapp(res.Trace, out.Trace)
	res.Results = append(res.Results, out.Res)
	if c.Dest != "" {
		res.Locals[c.Dest] = out.Res
	}
	log.Debug("call complete", "step", step, "op", op, "result", out.Res, "events", len(out.Trace))
	return nil
}

// record stores the events of one call atomically.
func (e *Engine) record(ctx context.Context, runID string, step int, t events.Trace) error {
	if e.store == nil || len(t) == 0 {
		return nil
	}
	recs := make([]ir.EventRecord, len(t))
	for i, ev := range t {
		seq := e.clock.Next()
		payload := events.Encode(ev)
		id, err := ir.EventID(runID, int64(step), seq, payload)
		if err != nil {
			return fmt.Errorf("record step %d: %w", step, err)
		}
		recs[i] = ir.EventRecord{
			ID:      id,
			RunID:   runID,
			Step:    int64(step),
			Seq:     seq,
			Kind:    events.Kind(ev),
			Payload: payload,
		}
	}
	if err := e.store.AppendEvents(ctx, recs); err != nil {
		return fmt.Errorf("record step %d: %w", step, err)
	}
	return nil
}
