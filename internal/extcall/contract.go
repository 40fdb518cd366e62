package extcall

import (
	"fmt"

	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// Contract property names, as reported in violations.
const (
	PropTyping        = "typing"
	PropEnvInvariance = "env-invariance"
	PropValidBlocks   = "valid-blocks"
	PropMaxPerm       = "max-perm"
	PropReadonly      = "readonly"
	PropExtends       = "extends"
	PropInject        = "inject"
	PropTraceLength   = "trace-length"
	PropReceptive     = "receptive"
	PropDeterminism   = "determinism"
)

// Properties lists every property in contract order.
var Properties = []string{
	PropTyping, PropEnvInvariance, PropValidBlocks, PropMaxPerm, PropReadonly,
	PropExtends, PropInject, PropTraceLength, PropReceptive, PropDeterminism,
}

// Violation reports an operation breaking a contract property.
type Violation struct {
	Op       string
	Property string
	Message  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s violates %s: %s", v.Op, v.Property, v.Message)
}

// OpName names a semantics in violations and logs.
func OpName(s Sem) string {
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	return fmt.Sprintf("%T", s)
}

func violation(s Sem, prop, format string, args ...any) *Violation {
	return &Violation{Op: OpName(s), Property: prop, Message: fmt.Sprintf(format, args...)}
}

// Input is one invocation of a semantics.
type Input struct {
	Env  genv.Env
	Args []values.Val
	Mem  *mem.Mem
}

func (in Input) step(s Sem, o Oracle) (Outcome, bool) {
	return s.Step(in.Env, in.Args, in.Mem, o)
}

// CheckTyping: the result inhabits the declared result type.
func CheckTyping(s Sem, in Input, o Oracle) error {
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	if res := s.Signature().Res; !values.HasRetType(out.Res, res) {
		return violation(s, PropTyping, "result %v does not have type %s", out.Res, res)
	}
	return nil
}

// CheckEnvInvariance: an equivalent environment gives the same outcome.
func CheckEnvInvariance(s Sem, in Input, other genv.Env, o Oracle) error {
	if !genv.Equivalent(in.Env, other) {
		return nil
	}
	out1, ok1 := in.step(s, o)
	out2, ok2 := s.Step(other, in.Args, in.Mem, o)
	switch {
	case ok1 != ok2:
		return violation(s, PropEnvInvariance, "outcome exists in one environment only (%v vs %v)", ok1, ok2)
	case ok1 && !sameOutcome(out1, out2):
		return violation(s, PropEnvInvariance, "outcomes differ: %v vs %v", out1.Trace, out2.Trace)
	}
	return nil
}

// CheckValidBlocks: blocks valid before the call stay valid.
func CheckValidBlocks(s Sem, in Input, o Oracle) error {
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	for b := values.Block(1); b < in.Mem.Next(); b++ {
		if !out.Mem.Valid(b) {
			return violation(s, PropValidBlocks, "block %d no longer valid", b)
		}
	}
	return nil
}

// CheckMaxPerm: maximal permissions of valid blocks never grow.
func CheckMaxPerm(s Sem, in Input, o Oracle) error {
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	for b := values.Block(1); b < in.Mem.Next(); b++ {
		lo, hi, _ := out.Mem.Bounds(b)
		for ofs := lo; ofs < hi; ofs++ {
			before := in.Mem.PermAt(b, ofs, mem.Max)
			after := out.Mem.PermAt(b, ofs, mem.Max)
			if after > before {
				return violation(s, PropMaxPerm, "block %d offset %d: max permission %s grew to %s", b, ofs, before, after)
			}
		}
	}
	return nil
}

// CheckReadonly: locations that could never be written are unchanged.
func CheckReadonly(s Sem, in Input, o Oracle) error {
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	if !mem.UnchangedOn(mem.LocNotWritable(in.Mem), in.Mem, out.Mem) {
		return violation(s, PropReadonly, "non-writable locations changed")
	}
	return nil
}

// CheckExtends: running on a more defined memory with more defined
// arguments gives the same trace, a more defined result and memory, and
// leaves alone what lies outside the original memory.
func CheckExtends(s Sem, in Input, args2 []values.Val, m2 *mem.Mem, o Oracle) error {
	if !mem.Extends(in.Mem, m2) || !values.LessdefList(in.Args, args2) {
		return nil
	}
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	out2, ok := s.Step(in.Env, args2, m2, Replay(out.Trace))
	switch {
	case !ok:
		return violation(s, PropExtends, "no outcome on the extended memory")
	case !out.Trace.Equal(out2.Trace):
		return violation(s, PropExtends, "trace %v became %v", out.Trace, out2.Trace)
	case !values.Lessdef(out.Res, out2.Res):
		return violation(s, PropExtends, "result %v is not refined by %v", out.Res, out2.Res)
	case !mem.Extends(out.Mem, out2.Mem):
		return violation(s, PropExtends, "memories after the call are not related")
	case !mem.UnchangedOn(mem.LocOutOfBounds(in.Mem), m2, out2.Mem):
		return violation(s, PropExtends, "locations outside the original memory changed")
	}
	return nil
}

// Witness extends f by pairing the blocks allocated by a call on each side,
// in allocation order, with delta 0.
func Witness(f values.Meminj, m1, m2, m1p, m2p *mem.Mem) values.Meminj {
	b1, b2 := m1.Next(), m1p.Next()
	for ; b1 < m2.Next() && b2 < m2p.Next(); b1, b2 = b1+1, b2+1 {
		f = f.Set(b1, values.Target{B: b2})
	}
	return f
}

// CheckInject: running on an injected memory with injected arguments in a
// compatible environment gives the same trace, and the results are related
// by an extension of the injection that only maps fresh blocks.
func CheckInject(s Sem, in Input, f values.Meminj, env2 genv.Env, args2 []values.Val, m2 *mem.Mem, o Oracle) error {
	if !genv.SymbolsInject(f, in.Env, env2) || !mem.Inject(f, in.Mem, m2) || !values.InjectList(f, in.Args, args2) {
		return nil
	}
	out, ok := in.step(s, o)
	if !ok {
		return nil
	}
	out2, ok := s.Step(env2, args2, m2, Replay(out.Trace))
	if !ok {
		return violation(s, PropInject, "no outcome on the injected memory")
	}
	g := Witness(f, in.Mem, out.Mem, m2, out2.Mem)
	switch {
	case !out.Trace.Equal(out2.Trace):
		return violation(s, PropInject, "trace %v became %v", out.Trace, out2.Trace)
	case !values.Inject(g, out.Res, out2.Res):
		return violation(s, PropInject, "result %v does not inject into %v", out.Res, out2.Res)
	case !mem.Inject(g, out.Mem, out2.Mem):
		return violation(s, PropInject, "memories after the call are not related")
	case !mem.UnchangedOn(mem.LocUnmapped(f), in.Mem, out.Mem):
		return violation(s, PropInject, "unmapped locations changed")
	case !mem.UnchangedOn(mem.LocOutOfReach(f, in.Mem), m2, out2.Mem):
		return violation(s, PropInject, "unreachable target locations changed")
	case !values.Incr(f, g):
		return violation(s, PropInject, "injection shrank")
	}
	for _, b := range g.Domain() {
		if _, old := f.Lookup(b); old {
			continue
		}
		t, _ := g.Lookup(b)
		if in.Mem.Valid(b) || m2.Valid(t.B) {
			return violation(s, PropInject, "block %d mapped to existing block %d", b, t.B)
		}
	}
	return nil
}

// CheckTraceLength: a call emits at most one event.
func CheckTraceLength(s Sem, in Input, o Oracle) error {
	out, ok := in.step(s, o)
	if ok && len(out.Trace) > 1 {
		return violation(s, PropTraceLength, "%d events emitted", len(out.Trace))
	}
	return nil
}

// CheckReceptive: any trace matching an emitted one is emitted by some
// outcome.
func CheckReceptive(s Sem, in Input, o Oracle, alt events.Trace) error {
	out, ok := in.step(s, o)
	if !ok || !events.MatchTraces(in.Env, out.Trace, alt) {
		return nil
	}
	out2, ok := in.step(s, Replay(alt))
	if !ok || !out2.Trace.Equal(alt) {
		return violation(s, PropReceptive, "matching trace %v has no outcome", alt)
	}
	return nil
}

// CheckDeterminism: outcomes for the same input have matching traces, and
// equal traces force equal results and memories.
func CheckDeterminism(s Sem, in Input, o1, o2 Oracle) error {
	out1, ok1 := in.step(s, o1)
	out2, ok2 := in.step(s, o2)
	if !ok1 || !ok2 {
		return nil
	}
	if !events.MatchTraces(in.Env, out1.Trace, out2.Trace) {
		return violation(s, PropDeterminism, "traces %v and %v do not match", out1.Trace, out2.Trace)
	}
	if out1.Trace.Equal(out2.Trace) && !sameOutcome(out1, out2) {
		return violation(s, PropDeterminism, "equal traces with different results or memories")
	}
	return nil
}
