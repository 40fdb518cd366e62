package builtinarg

import (
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// Locals resolves local bindings. Missing bindings must read as Undef.
type Locals[A comparable] func(A) values.Val

// MapLocals reads bindings from a map; absent keys are Undef.
func MapLocals[A comparable](bindings map[A]values.Val) Locals[A] {
	return func(x A) values.Val {
		if v, ok := bindings[x]; ok {
			return v
		}
		return values.Undef
	}
}

// Eval computes the value of a with frame pointer sp. It fails only when a
// load fails.
func Eval[A comparable](ge genv.Env, e Locals[A], sp values.Val, m *mem.Mem, a Arg[A]) (values.Val, bool) {
	switch a := a.(type) {
	case BA[A]:
		return e(a.X), true
	case BAInt[A]:
		return values.Vint(a.N), true
	case BALong[A]:
		return values.Vlong(a.N), true
	case BAFloat[A]:
		return values.Vfloat(a.F), true
	case BASingle[A]:
		return values.Vsingle(a.F), true
	case BALoadStack[A]:
		return m.LoadV(a.Chunk, values.OffsetPtr(sp, a.Ofs))
	case BAAddrStack[A]:
		return values.OffsetPtr(sp, a.Ofs), true
	case BALoadGlobal[A]:
		return m.LoadV(a.Chunk, genv.SymbolAddress(ge, a.ID, a.Ofs))
	case BAAddrGlobal[A]:
		return genv.SymbolAddress(ge, a.ID, a.Ofs), true
	case BASplitLong[A]:
		hi, ok := Eval(ge, e, sp, m, a.Hi)
		if !ok {
			return nil, false
		}
		lo, ok := Eval(ge, e, sp, m, a.Lo)
		if !ok {
			return nil, false
		}
		return values.LongOfWords(hi, lo), true
	case BAAddPtr[A]:
		v1, ok := Eval(ge, e, sp, m, a.A1)
		if !ok {
			return nil, false
		}
		v2, ok := Eval(ge, e, sp, m, a.A2)
		if !ok {
			return nil, false
		}
		return values.AddL(v1, v2), true
	}
	return nil, false
}

// EvalList evaluates args pointwise and fails if any of them fails.
func EvalList[A comparable](ge genv.Env, e Locals[A], sp values.Val, m *mem.Mem, args []Arg[A]) ([]values.Val, bool) {
	vs := make([]values.Val, len(args))
	for i, a := range args {
		v, ok := Eval(ge, e, sp, m, a)
		if !ok {
			return nil, false
		}
		vs[i] = v
	}
	return vs, true
}
