package events

import (
	"fmt"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/floats"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/values"
)

// Eventval is a sealed interface over the values events can carry.
type Eventval interface {
	isEventval()
	fmt.Stringer
}

type EVInt int32
type EVLong int64
type EVFloat float64
type EVSingle float32

// EVPtrGlobal is a pointer Ofs bytes into the global named ID.
type EVPtrGlobal struct {
	ID  string
	Ofs int64
}

func (EVInt) isEventval()       {}
func (EVLong) isEventval()      {}
func (EVFloat) isEventval()     {}
func (EVSingle) isEventval()    {}
func (EVPtrGlobal) isEventval() {}

func (v EVInt) String() string       { return fmt.Sprintf("%d", int32(v)) }
func (v EVLong) String() string      { return fmt.Sprintf("%dL", int64(v)) }
func (v EVFloat) String() string     { return fmt.Sprintf("%v", float64(v)) }
func (v EVSingle) String() string    { return fmt.Sprintf("%vf", float32(v)) }
func (v EVPtrGlobal) String() string { return fmt.Sprintf("&%s%+d", v.ID, v.Ofs) }

// TypeOf is the type tag of an eventval.
func TypeOf(ev Eventval) ast.Typ {
	switch ev.(type) {
	case EVInt:
		return ast.Tint
	case EVLong:
		return ast.Tlong
	case EVFloat:
		return ast.Tfloat
	case EVSingle:
		return ast.Tsingle
	case EVPtrGlobal:
		return ast.Tptr
	default:
		panic(fmt.Sprintf("unknown eventval %T", ev))
	}
}

// EqualVal is structural equality; floats compare by bits.
func EqualVal(a, b Eventval) bool {
	switch a := a.(type) {
	case EVFloat:
		b, ok := b.(EVFloat)
		return ok && floats.Eq64(float64(a), float64(b))
	case EVSingle:
		b, ok := b.(EVSingle)
		return ok && floats.Eq32(float32(a), float32(b))
	default:
		return a == b
	}
}

// EqualVals is pointwise EqualVal.
func EqualVals(a, b []Eventval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualVal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Valid holds for numeric eventvals and for pointers into public globals.
func Valid(ge genv.Env, ev Eventval) bool {
	if p, ok := ev.(EVPtrGlobal); ok {
		return ge.IsPublic(p.ID)
	}
	return true
}

// Match relates an eventval, a type and a runtime value. Pointers to
// globals match at Tlong as well as Tptr, and the any types match every
// eventval that fits in them.
func Match(ge genv.Env, ev Eventval, ty ast.Typ, v values.Val) bool {
	if !ty.Admits(TypeOf(ev)) {
		return false
	}
	switch ev := ev.(type) {
	case EVInt:
		n, ok := v.(values.Vint)
		if !ok {
			return false
		}
		return int32(n) == int32(ev)
	case EVLong:
		n, ok := v.(values.Vlong)
		if !ok {
			return false
		}
		return int64(n) == int64(ev)
	case EVFloat:
		return values.Equal(values.Vfloat(ev), v)
	case EVSingle:
		return values.Equal(values.Vsingle(ev), v)
	case EVPtrGlobal:
		p, ok := v.(values.Vptr)
		if !ok || p.Ofs != ev.Ofs || !ge.IsPublic(ev.ID) {
			return false
		}
		b, found := ge.FindSymbol(ev.ID)
		return found && b == p.B
	default:
		return false
	}
}

// MatchList is pointwise Match.
func MatchList(ge genv.Env, evs []Eventval, tys []ast.Typ, vs []values.Val) bool {
	if len(evs) != len(tys) || len(tys) != len(vs) {
		return false
	}
	for i := range evs {
		if !Match(ge, evs[i], tys[i], vs[i]) {
			return false
		}
	}
	return true
}

// OfVal is the eventval matching v at type ty, if any.
func OfVal(ge genv.Env, ty ast.Typ, v values.Val) (Eventval, bool) {
	var ev Eventval
	switch v := v.(type) {
	case values.Vint:
		ev = EVInt(v)
	case values.Vlong:
		ev = EVLong(v)
	case values.Vfloat:
		ev = EVFloat(v)
	case values.Vsingle:
		ev = EVSingle(v)
	case values.Vptr:
		id, ok := ge.InvertSymbol(v.B)
		if !ok {
			return nil, false
		}
		ev = EVPtrGlobal{ID: id, Ofs: v.Ofs}
	default:
		return nil, false
	}
	if !Match(ge, ev, ty, v) {
		return nil, false
	}
	return ev, true
}

// OfVals is OfVal over a list; it fails as a whole.
func OfVals(ge genv.Env, tys []ast.Typ, vs []values.Val) ([]Eventval, bool) {
	if len(tys) != len(vs) {
		return nil, false
	}
	out := make([]Eventval, len(vs))
	for i := range vs {
		ev, ok := OfVal(ge, tys[i], vs[i])
		if !ok {
			return nil, false
		}
		out[i] = ev
	}
	return out, true
}

// ToVal is the runtime value an eventval stands for. It fails only for
// pointers to globals that are unknown or not public.
func ToVal(ge genv.Env, ev Eventval) (values.Val, bool) {
	switch ev := ev.(type) {
	case EVInt:
		return values.Vint(ev), true
	case EVLong:
		return values.Vlong(ev), true
	case EVFloat:
		return values.Vfloat(ev), true
	case EVSingle:
		return values.Vsingle(ev), true
	case EVPtrGlobal:
		b, ok := ge.FindSymbol(ev.ID)
		if !ok || !ge.IsPublic(ev.ID) {
			return nil, false
		}
		return values.Vptr{B: b, Ofs: ev.Ofs}, true
	default:
		return nil, false
	}
}
