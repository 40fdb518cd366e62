package extcall

import (
	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// Outcome is one result of an external call.
type Outcome struct {
	Trace events.Trace
	Res   values.Val
	Mem   *mem.Mem
}

// Sem is the semantics of an external operation.
type Sem interface {
	// Signature is the type callers must respect.
	Signature() ast.Signature
	// Step returns the outcome selected by o, or false when the call has
	// no outcome. Step never has effects beyond its result.
	Step(ge genv.Env, args []values.Val, m *mem.Mem, o Oracle) (Outcome, bool)
}

// Query asks the outside world for the result of an event. Event carries
// everything but the result.
type Query struct {
	Env   genv.Env
	Event events.Event
	Type  ast.Typ
}

// Oracle answers queries. Oracles must be deterministic: asking the same
// query twice gives the same answer. Answers that are invalid or of the
// wrong type make the call fail.
type Oracle interface {
	Answer(q Query) (events.Eventval, bool)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(q Query) (events.Eventval, bool)

func (f OracleFunc) Answer(q Query) (events.Eventval, bool) { return f(q) }

// DefaultOracle answers zero for numeric and any types and the start of
// the first public global for pointers.
var DefaultOracle Oracle = OracleFunc(func(q Query) (events.Eventval, bool) {
	switch q.Type {
	case ast.Tint, ast.Tany32:
		return events.EVInt(0), true
	case ast.Tlong, ast.Tany64:
		return events.EVLong(0), true
	case ast.Tfloat:
		return events.EVFloat(0), true
	case ast.Tsingle:
		return events.EVSingle(0), true
	case ast.Tptr:
		for _, id := range q.Env.Symbols() {
			if q.Env.IsPublic(id) {
				return events.EVPtrGlobal{ID: id}, true
			}
		}
	}
	return nil, false
})

// Replay answers with the result recorded in the first event of t, provided
// the query asks for that same event.
func Replay(t events.Trace) Oracle {
	return OracleFunc(func(q Query) (events.Eventval, bool) {
		if len(t) == 0 {
			return nil, false
		}
		return sameRequest(q.Event, t[0])
	})
}

// sameRequest compares two events up to their result and returns the
// result of b.
func sameRequest(a, b events.Event) (events.Eventval, bool) {
	switch a := a.(type) {
	case events.Syscall:
		b, ok := b.(events.Syscall)
		if ok && a.Name == b.Name && events.EqualVals(a.Args, b.Args) {
			return b.Res, true
		}
	case events.VLoad:
		b, ok := b.(events.VLoad)
		if ok && a.Chunk == b.Chunk && a.ID == b.ID && a.Ofs == b.Ofs {
			return b.Res, true
		}
	}
	return nil, false
}

// ask obtains an answer of type ty for req and the value it stands for.
func ask(o Oracle, ge genv.Env, req events.Event, ty ast.Typ) (events.Eventval, values.Val, bool) {
	ev, ok := o.Answer(Query{Env: ge, Event: req, Type: ty})
	if !ok || ev == nil {
		return nil, nil, false
	}
	v, ok := events.ToVal(ge, ev)
	if !ok || !events.Match(ge, ev, ty, v) {
		return nil, nil, false
	}
	return ev, v, true
}

// Admits decides whether out is an outcome of s.
func Admits(s Sem, ge genv.Env, args []values.Val, m *mem.Mem, out Outcome) bool {
	got, ok := s.Step(ge, args, m, Replay(out.Trace))
	return ok && sameOutcome(got, out)
}

func sameOutcome(a, b Outcome) bool {
	return a.Trace.Equal(b.Trace) && values.Equal(a.Res, b.Res) && mem.Equal(a.Mem, b.Mem)
}

func none() (Outcome, bool) { return Outcome{}, false }
