package events

import (
	"fmt"
	"strings"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/genv"
)

// Event is a sealed interface over observable actions.
type Event interface {
	isEvent()
	fmt.Stringer
}

// Syscall is a call to the outside world. Res is supplied by the
// environment.
type Syscall struct {
	Name string
	Args []Eventval
	Res  Eventval
}

// VLoad is a volatile read. Res is supplied by the environment.
type VLoad struct {
	Chunk ast.Chunk
	ID    string
	Ofs   int64
	Res   Eventval
}

// VStore is a volatile write of Arg.
type VStore struct {
	Chunk ast.Chunk
	ID    string
	Ofs   int64
	Arg   Eventval
}

// Annot is an annotation with its arguments.
type Annot struct {
	Text string
	Args []Eventval
}

func (Syscall) isEvent() {}
func (VLoad) isEvent()   {}
func (VStore) isEvent()  {}
func (Annot) isEvent()   {}

func joinVals(vs []Eventval) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func (e Syscall) String() string {
	return fmt.Sprintf("syscall %s(%s) = %v", e.Name, joinVals(e.Args), e.Res)
}

func (e VLoad) String() string {
	return fmt.Sprintf("vload %s &%s%+d = %v", e.Chunk, e.ID, e.Ofs, e.Res)
}

func (e VStore) String() string {
	return fmt.Sprintf("vstore %s &%s%+d := %v", e.Chunk, e.ID, e.Ofs, e.Arg)
}

func (e Annot) String() string {
	return fmt.Sprintf("annot %q(%s)", e.Text, joinVals(e.Args))
}

// EqualEvent is structural equality.
func EqualEvent(a, b Event) bool {
	switch a := a.(type) {
	case Syscall:
		b, ok := b.(Syscall)
		return ok && a.Name == b.Name && EqualVals(a.Args, b.Args) && EqualVal(a.Res, b.Res)
	case VLoad:
		b, ok := b.(VLoad)
		return ok && a.Chunk == b.Chunk && a.ID == b.ID && a.Ofs == b.Ofs && EqualVal(a.Res, b.Res)
	case VStore:
		b, ok := b.(VStore)
		return ok && a.Chunk == b.Chunk && a.ID == b.ID && a.Ofs == b.Ofs && EqualVal(a.Arg, b.Arg)
	case Annot:
		b, ok := b.(Annot)
		return ok && a.Text == b.Text && EqualVals(a.Args, b.Args)
	default:
		return false
	}
}

// Trace is a finite sequence of events. Traces are never modified once
// built; Eapp always returns a fresh slice.
type Trace []Event

// E0 is the empty trace.
func E0() Trace { return nil }

// One is the trace holding only ev.
func One(ev Event) Trace { return Trace{ev} }

// Eapp concatenates traces.
func Eapp(ts ...Trace) Trace {
	n := 0
	for _, t := range ts {
		n += len(t)
	}
	if n == 0 {
		return nil
	}
	out := make(Trace, 0, n)
	for _, t := range ts {
		out = append(out, t...)
	}
	return out
}

// Equal is element-wise EqualEvent. Nil and empty traces are equal.
func (t Trace) Equal(u Trace) bool {
	if len(t) != len(u) {
		return false
	}
	for i := range t {
		if !EqualEvent(t[i], u[i]) {
			return false
		}
	}
	return true
}

// Prefix holds when u = t ++ w for some w.
func Prefix(t, u Trace) bool {
	return len(t) <= len(u) && t.Equal(u[:len(t)])
}

func (t Trace) String() string {
	if len(t) == 0 {
		return "E0"
	}
	parts := make([]string, len(t))
	for i, ev := range t {
		parts[i] = ev.String()
	}
	return strings.Join(parts, " ** ")
}

// sameAnswer holds when two environment-supplied results are both valid and
// have the same underlying type; a long may stand where a pointer did.
func sameAnswer(ge genv.Env, a, b Eventval) bool {
	return Valid(ge, a) && Valid(ge, b) && TypeOf(a).Underlying() == TypeOf(b).Underlying()
}

// MatchTraces relates traces of at most one event that only differ in the
// results the environment supplied. Program-determined events must be
// identical.
func MatchTraces(ge genv.Env, t1, t2 Trace) bool {
	if len(t1) == 0 && len(t2) == 0 {
		return true
	}
	if len(t1) != 1 || len(t2) != 1 {
		return false
	}
	switch a := t1[0].(type) {
	case Syscall:
		b, ok := t2[0].(Syscall)
		return ok && a.Name == b.Name && EqualVals(a.Args, b.Args) && sameAnswer(ge, a.Res, b.Res)
	case VLoad:
		b, ok := t2[0].(VLoad)
		return ok && a.Chunk == b.Chunk && a.ID == b.ID && a.Ofs == b.Ofs && sameAnswer(ge, a.Res, b.Res)
	case VStore, Annot:
		return EqualEvent(a, t2[0])
	default:
		return false
	}
}
