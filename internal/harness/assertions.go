package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] step %d: %s\n", i+1, event.Step, event.Event)
	}

	return buf.String()
}

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Ctx context.Context

	// Replay reruns the scenario answering oracle queries from answers.
	Replay func(ctx context.Context, answers []string) (events.Trace, error)
}

// assertTraceContains checks that some event prints exactly as expected.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Event == assertion.Event {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %q", assertion.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks the number of events of one kind.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d %s events", count, assertion.Kind),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceLength(trace []TraceEvent, assertion Assertion) error {
	if len(trace) != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceLength,
			Expected: fmt.Sprintf("%d events", assertion.Count),
			Actual:   fmt.Sprintf("%d events", len(trace)),
			Trace:    trace,
		}
	}
	return nil
}

// assertValue compares got with the value expression want.
func assertValue(result *Result, typ, what string, got values.Val, want string) error {
	expected, err := ParseVal(want, result.Env, result.Run.Locals)
	if err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	if !values.Equal(got, expected) {
		return &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("%s = %v", what, expected),
			Actual:   fmt.Sprintf("%s = %v", what, got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertResult(result *Result, assertion Assertion) error {
	rs := result.Run.Results
	if assertion.Step < 0 || assertion.Step >= len(rs) {
		return &AssertionError{
			Type:     AssertResult,
			Expected: fmt.Sprintf("result of call %d", assertion.Step),
			Actual:   fmt.Sprintf("%d successful calls", len(rs)),
			Trace:    result.Trace,
		}
	}
	return assertValue(result, AssertResult, fmt.Sprintf("result[%d]", assertion.Step), rs[assertion.Step], assertion.Value)
}

func assertLocal(result *Result, assertion Assertion) error {
	v, ok := result.Run.Locals[assertion.Name]
	if !ok {
		return &AssertionError{
			Type:     AssertLocal,
			Expected: fmt.Sprintf("local %s bound", assertion.Name),
			Actual:   "unbound",
			Trace:    result.Trace,
		}
	}
	return assertValue(result, AssertLocal, "$"+assertion.Name, v, assertion.Value)
}

// resolveAddr evaluates an address expression against the final state.
func resolveAddr(result *Result, typ, addr string) (values.Vptr, error) {
	v, err := ParseVal(addr, result.Env, result.Run.Locals)
	if err != nil {
		return values.Vptr{}, fmt.Errorf("%s: %w", typ, err)
	}
	p, ok := v.(values.Vptr)
	if !ok {
		return values.Vptr{}, fmt.Errorf("%s: %q is not a pointer (%v)", typ, addr, v)
	}
	return p, nil
}

// assertMemory loads from the final memory. The value "none" expects the
// load to fail.
func assertMemory(result *Result, assertion Assertion) error {
	p, err := resolveAddr(result, AssertMemory, assertion.Addr)
	if err != nil {
		return err
	}
	c, err := ast.ParseChunk(assertion.Chunk)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertMemory, err)
	}

	got, ok := result.Run.Mem.Load(c, p.B, p.Ofs)
	what := fmt.Sprintf("%s[%s]", assertion.Chunk, assertion.Addr)
	if assertion.Value == "none" {
		if ok {
			return &AssertionError{
				Type:     AssertMemory,
				Expected: what + " not loadable",
				Actual:   fmt.Sprintf("%s = %v", what, got),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertMemory,
			Expected: fmt.Sprintf("%s = %s", what, assertion.Value),
			Actual:   what + " not loadable",
			Trace:    result.Trace,
		}
	}
	return assertValue(result, AssertMemory, what, got, assertion.Value)
}

// assertNoAccess checks that a range lost every permission, as freed
// memory does.
func assertNoAccess(result *Result, assertion Assertion) error {
	p, err := resolveAddr(result, AssertNoAccess, assertion.Addr)
	if err != nil {
		return err
	}
	m := result.Run.Mem
	for ofs := p.Ofs; ofs < p.Ofs+assertion.Size; ofs++ {
		if m.Perm(p.B, ofs, mem.Max, mem.Nonempty) {
			return &AssertionError{
				Type:     AssertNoAccess,
				Expected: fmt.Sprintf("no permission on [%s, +%d)", assertion.Addr, assertion.Size),
				Actual:   fmt.Sprintf("offset %d has %s", ofs, m.PermAt(p.B, ofs, mem.Max)),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// tracesAgree holds when t1 and t2 are identical up to the first event
// whose environment answer differs, and match on that event. What follows
// a different answer is unconstrained.
func tracesAgree(ge genv.Env, t1, t2 events.Trace) bool {
	for i := range t1 {
		if i >= len(t2) {
			return false
		}
		a, b := t1[i:i+1], t2[i:i+1]
		if !events.MatchTraces(ge, a, b) {
			return false
		}
		if !a.Equal(b) {
			return true
		}
	}
	return len(t1) == len(t2)
}

// assertReplayMatches reruns the scenario with other answers. The new
// trace must agree with the first one until the answers diverge.
func assertReplayMatches(result *Result, assertion Assertion, actx *AssertionContext) error {
	t2, err := actx.Replay(actx.Ctx, assertion.Answers)
	if err != nil {
		return &AssertionError{
			Type:     AssertReplayMatches,
			Expected: "replay runs to completion",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}

	t1 := result.Run.Trace
	if !tracesAgree(result.Env, t1, t2) {
		return &AssertionError{
			Type:     AssertReplayMatches,
			Expected: fmt.Sprintf("trace matching %s", t1),
			Actual:   t2.String(),
			Trace:    result.Trace,
		}
	}
	if assertion.Distinct && t1.Equal(t2) {
		return &AssertionError{
			Type:     AssertReplayMatches,
			Expected: "a trace different from the first run",
			Actual:   t2.String(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions checks all assertions against the result.
// Returns a list of error messages for failed assertions.
// Assertions that inspect engine state need result.Run and result.Env.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		needsRun := false
		switch assertion.Type {
		case AssertResult, AssertLocal, AssertMemory, AssertNoAccess, AssertReplayMatches:
			needsRun = true
		}

		switch {
		case needsRun && (result.Run == nil || result.Env == nil):
			err = fmt.Errorf("assertion[%d]: %s requires engine state", i, assertion.Type)
		case assertion.Type == AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case assertion.Type == AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case assertion.Type == AssertTraceLength:
			err = assertTraceLength(result.Trace, assertion)
		case assertion.Type == AssertResult:
			err = assertResult(result, assertion)
		case assertion.Type == AssertLocal:
			err = assertLocal(result, assertion)
		case assertion.Type == AssertMemory:
			err = assertMemory(result, assertion)
		case assertion.Type == AssertNoAccess:
			err = assertNoAccess(result, assertion)
		case assertion.Type == AssertReplayMatches:
			if actx == nil || actx.Replay == nil {
				err = fmt.Errorf("assertion[%d]: replay_matches requires a replay context", i)
			} else {
				err = assertReplayMatches(result, assertion, actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
