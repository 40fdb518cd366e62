package harness

import (
	"math/rand/v2"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// sval is a generated value. Heap pointers stay symbolic until a world is
// built, so one input can be laid out at different block numbers.
type sval struct {
	v    values.Val // nil is undef; ignored for heap pointers
	heap int        // heap block index, or -1
	ofs  int64
}

func lit(v values.Val) sval         { return sval{v: v, heap: -1} }
func heapPtr(i int, ofs int64) sval { return sval{heap: i, ofs: ofs} }
func (v sval) undef() bool          { return v.heap < 0 && v.v == nil }
func undefVal() sval                { return sval{heap: -1} }
func globalPtr(b values.Block, ofs int64) sval {
	return lit(values.Vptr{B: b, Ofs: ofs})
}

// slot is one 8-byte cell of a heap block body.
type slot struct {
	chunk ast.Chunk
	val   sval
	set   bool
}

// heapPlan describes a block laid out like Malloc's: a header at -8
// followed by the body.
type heapPlan struct {
	header   values.Val // nil leaves the header undef
	slots    []slot
	readonly bool
}

func (h heapPlan) size() int64 { return int64(len(h.slots)) * 8 }

// plan is the part of memory a case adds on top of the initial memory.
type plan struct {
	heap []heapPlan
}

// world is a plan laid out in memory.
type world struct {
	mem  *mem.Mem
	heap []values.Vptr // start of each heap block's body
}

func (w world) resolve(v sval) values.Val {
	switch {
	case v.heap >= 0:
		at := w.heap[v.heap]
		return values.Vptr{B: at.B, Ofs: at.Ofs + v.ofs}
	case v.v == nil:
		return values.Undef
	}
	return v.v
}

func (w world) resolveAll(vs []sval) []values.Val {
	out := make([]values.Val, len(vs))
	for i, v := range vs {
		out[i] = w.resolve(v)
	}
	return out
}

// build lays p out after m0, allocating pad unused blocks first and then
// one block per heap plan. fill stores a long in every unset slot, giving a
// memory that extends the unfilled one.
func (p plan) build(m0 *mem.Mem, pad int, fill bool) (world, bool) {
	m := m0
	for range pad {
		m, _ = m.Alloc(0, 8)
	}
	var w world
	for _, h := range p.heap {
		var b values.Block
		m, b = m.Alloc(-ast.PtrSize, h.size())
		w.heap = append(w.heap, values.Vptr{B: b, Ofs: 0})
	}
	return p.populate(m, w, fill)
}

// pack lays p out after m0 with every heap block embedded in a single
// block: each header and body sits gap bytes after the previous body, so
// bodies start at nonzero offsets that are multiples of 8 when gap is.
func (p plan) pack(m0 *mem.Mem, gap int64) (world, bool) {
	var w world
	end := int64(0)
	for _, h := range p.heap {
		body := end + gap + ast.PtrSize
		w.heap = append(w.heap, values.Vptr{Ofs: body})
		end = body + h.size()
	}
	m, b := m0.Alloc(0, end+gap)
	for i := range w.heap {
		w.heap[i].B = b
	}
	return p.populate(m, w, false)
}

// populate writes the headers and slots of p at the places w gives them.
func (p plan) populate(m *mem.Mem, w world, fill bool) (world, bool) {
	var ok bool
	for i, h := range p.heap {
		at := w.heap[i]
		if h.header != nil {
			if m, ok = m.Store(ast.Mptr, at.B, at.Ofs-ast.PtrSize, h.header); !ok {
				return world{}, false
			}
		}
		for j, s := range h.slots {
			ofs := at.Ofs + int64(j)*8
			switch {
			case s.set:
				m, ok = m.Store(s.chunk, at.B, ofs, w.resolve(s.val))
			case fill:
				m, ok = m.Store(ast.Mint64, at.B, ofs, values.Vlong(int64(1000*i+j)))
			default:
				ok = true
			}
			if !ok {
				return world{}, false
			}
		}
		if h.readonly {
			if m, ok = m.DropPerm(at.B, at.Ofs, at.Ofs+h.size(), mem.Readable); !ok {
				return world{}, false
			}
		}
	}
	w.mem = m
	return w, true
}

// inject maps the blocks of src onto dst: globals to themselves, each heap
// block to wherever dst put it.
func (p plan) inject(m0 *mem.Mem, src, dst world) values.Meminj {
	f := values.IdentityInj(m0.Next())
	for i := range p.heap {
		s, d := src.heap[i], dst.heap[i]
		f = f.Set(s.B, values.Target{B: d.B, Delta: d.Ofs - s.Ofs})
	}
	return f
}

// gen draws inputs for one operation.
type gen struct {
	r        *rand.Rand
	ge       genv.Env
	m0       *mem.Mem
	symbols  []values.Block
	volatile []values.Block
}

func newGen(r *rand.Rand, ge genv.Env, m0 *mem.Mem) *gen {
	g := &gen{r: r, ge: ge, m0: m0}
	for _, id := range ge.Symbols() {
		b, _ := ge.FindSymbol(id)
		g.symbols = append(g.symbols, b)
		if ge.IsVolatile(b) {
			g.volatile = append(g.volatile, b)
		}
	}
	return g
}

func (g *gen) chance(pct int) bool { return g.r.IntN(100) < pct }

// plan draws 1 to 3 heap blocks of at least minSlots slots.
func (g *gen) plan(minSlots int) plan {
	var p plan
	n := 1 + g.r.IntN(3)
	for range n {
		h := heapPlan{slots: make([]slot, minSlots+g.r.IntN(4))}
		switch {
		case g.chance(85):
			h.header = values.Vlong(h.size())
		case g.chance(50):
			h.header = values.Vlong(0)
		case g.chance(50):
			h.header = values.Vlong(-8)
		}
		for j := range h.slots {
			if g.chance(50) {
				h.slots[j] = g.slot(n)
			}
		}
		h.readonly = g.chance(10)
		p.heap = append(p.heap, h)
	}
	return p
}

func (g *gen) slot(nheap int) slot {
	switch g.r.IntN(4) {
	case 0:
		return slot{chunk: ast.Mint32, val: lit(values.Vint(randInt32(g.r))), set: true}
	case 1:
		return slot{chunk: ast.Mfloat64, val: lit(values.Vfloat(randFloat64(g.r))), set: true}
	case 2:
		if g.chance(50) {
			return slot{chunk: ast.Mptr, val: heapPtr(g.r.IntN(nheap), 8*g.r.Int64N(4)), set: true}
		}
		if len(g.symbols) > 0 {
			return slot{chunk: ast.Mptr, val: globalPtr(g.symbols[g.r.IntN(len(g.symbols))], 0), set: true}
		}
	}
	return slot{chunk: ast.Mint64, val: lit(values.Vlong(randInt64(g.r))), set: true}
}

// ptr draws an address for accesses of the given alignment, mostly into
// the plan's heap or a global.
func (g *gen) ptr(p plan, align int64) sval {
	switch k := g.r.IntN(100); {
	case k < 45 && len(p.heap) > 0:
		i := g.r.IntN(len(p.heap))
		return heapPtr(i, align*g.r.Int64N(p.heap[i].size()/align+1))
	case k < 85 && len(g.symbols) > 0:
		b := g.symbols[g.r.IntN(len(g.symbols))]
		lo, hi, _ := g.m0.Bounds(b)
		return globalPtr(b, lo+align*g.r.Int64N((hi-lo)/align+1))
	case k < 90:
		return lit(values.Nullptr)
	case k < 95:
		return lit(values.Vint(randInt32(g.r)))
	}
	return undefVal()
}

// val draws a value of type ty, undef one time in ten.
func (g *gen) val(p plan, ty ast.Typ) sval {
	if g.chance(10) {
		return undefVal()
	}
	return g.defined(p, ty)
}

// defined draws a value of type ty that is never undef.
func (g *gen) defined(p plan, ty ast.Typ) sval {
	switch ty {
	case ast.Tint:
		return lit(values.Vint(randInt32(g.r)))
	case ast.Tlong:
		// pointers are longs too
		if g.chance(20) {
			if v := g.ptr(p, 8); !v.undef() {
				return v
			}
		}
		return lit(values.Vlong(randInt64(g.r)))
	case ast.Tfloat:
		return lit(values.Vfloat(randFloat64(g.r)))
	case ast.Tsingle:
		return lit(values.Vsingle(float32(randFloat64(g.r))))
	case ast.Tptr:
		if v := g.ptr(p, 1); !v.undef() {
			return v
		}
		return lit(values.Nullptr)
	case ast.Tany32:
		if g.chance(50) {
			return g.defined(p, ast.Tint)
		}
		return g.defined(p, ast.Tsingle)
	case ast.Tany64:
		return g.defined(p, [...]ast.Typ{ast.Tlong, ast.Tfloat, ast.Tptr}[g.r.IntN(3)])
	}
	return lit(values.Vint(0))
}

// input draws a memory plan and arguments shaped for s.
func (g *gen) input(s extcall.Sem) (plan, []sval) {
	switch s := s.(type) {
	case extcall.VolatileLoad:
		p := g.plan(1)
		return p, []sval{g.target(p, s.Chunk)}
	case extcall.VolatileStore:
		p := g.plan(1)
		return p, []sval{g.target(p, s.Chunk), g.val(p, s.Chunk.Type())}
	case extcall.Malloc:
		p := g.plan(1)
		switch k := g.r.IntN(100); {
		case k < 80:
			return p, []sval{lit(values.Vlong(g.r.Int64N(65)))}
		case k < 90:
			return p, []sval{lit(values.Vlong(randInt64(g.r)))}
		case k < 95:
			return p, []sval{lit(values.Vint(8))}
		}
		return p, []sval{undefVal()}
	case extcall.Free:
		p := g.plan(1)
		if g.chance(75) {
			return p, []sval{heapPtr(g.r.IntN(len(p.heap)), 0)}
		}
		return p, []sval{g.ptr(p, 8)}
	case extcall.Memcpy:
		return g.memcpy(s)
	}

	p := g.plan(1)
	sig := s.Signature()
	args := make([]sval, len(sig.Args))
	for i, ty := range sig.Args {
		args[i] = g.val(p, ty)
	}
	return p, args
}

// target is an address for a volatile access of chunk c, favoring
// volatile globals.
func (g *gen) target(p plan, c ast.Chunk) sval {
	if len(g.volatile) > 0 && g.chance(40) {
		b := g.volatile[g.r.IntN(len(g.volatile))]
		lo, hi, _ := g.m0.Bounds(b)
		n := max((hi-lo)/c.Size(), 1)
		return globalPtr(b, lo+c.Size()*g.r.Int64N(n))
	}
	return g.ptr(p, c.Size())
}

func (g *gen) memcpy(s extcall.Memcpy) (plan, []sval) {
	align := max(s.Align, 1)
	slots := int(max(2*s.Size/8, 1))
	p := g.plan(slots)

	src := g.r.IntN(len(p.heap))
	dst := src
	if g.chance(40) {
		dst = g.r.IntN(len(p.heap))
	}
	at := func(i int) int64 {
		room := max(p.heap[i].size()-s.Size, 0)
		return align * g.r.Int64N(room/align+1)
	}
	args := []sval{heapPtr(dst, at(dst)), heapPtr(src, at(src))}
	if g.chance(10) {
		args[g.r.IntN(2)] = g.ptr(p, align)
	}
	return p, args
}

// extend replaces undef arguments with defined ones of the declared types.
func (g *gen) extend(p plan, sig ast.Signature, args []sval) []sval {
	out := make([]sval, len(args))
	for i, a := range args {
		out[i] = a
		if a.undef() && i < len(sig.Args) {
			out[i] = g.defined(p, sig.Args[i])
		}
	}
	return out
}

// testCase draws an input for s and lays it out for every property.
func (g *gen) testCase(s extcall.Sem) (*testCase, bool) {
	p, args := g.input(s)
	w, ok := p.build(g.m0, 0, false)
	if !ok {
		return nil, false
	}
	ext, ok := p.build(g.m0, 0, true)
	if !ok {
		return nil, false
	}
	var inj world
	if g.chance(50) {
		inj, ok = p.pack(g.m0, 8*g.r.Int64N(3))
	} else {
		inj, ok = p.build(g.m0, 1+g.r.IntN(2), false)
	}
	if !ok {
		return nil, false
	}

	c := &testCase{
		s:     s,
		in:    extcall.Input{Env: g.ge, Args: w.resolveAll(args), Mem: w.mem},
		ext:   extcall.Input{Env: g.ge, Args: ext.resolveAll(g.extend(p, s.Signature(), args)), Mem: ext.mem},
		inj:   extcall.Input{Env: g.ge, Args: inj.resolveAll(args), Mem: inj.mem},
		f:     p.inject(g.m0, w, inj),
		seeds: [2]uint64{g.r.Uint64(), g.r.Uint64()},
	}
	c.alt = g.alternative(c)
	return c, true
}

// alternative is a trace matching the one c emits under its first seed,
// with a different answer where the environment supplies one.
func (g *gen) alternative(c *testCase) events.Trace {
	out, ok := c.s.Step(c.in.Env, c.in.Args, c.in.Mem, RandomOracle(c.seeds[0]))
	if !ok || len(out.Trace) != 1 {
		return nil
	}
	switch ev := out.Trace[0].(type) {
	case events.VLoad:
		if res, ok := randomEventval(g.r, g.ge, events.TypeOf(ev.Res)); ok {
			ev.Res = res
		}
		return events.One(ev)
	case events.Syscall:
		if res, ok := randomEventval(g.r, g.ge, events.TypeOf(ev.Res)); ok {
			ev.Res = res
		}
		return events.One(ev)
	}
	return out.Trace
}
