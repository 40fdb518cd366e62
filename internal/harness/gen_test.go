package harness

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/extcall"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

func newTestGen(t *testing.T, seed uint64) *gen {
	t.Helper()
	ge := oracleEnv()
	m0, err := ge.InitMem()
	require.NoError(t, err)
	return newGen(rand.New(rand.NewPCG(seed, 0)), ge, m0)
}

func TestPlanBuild_Layout(t *testing.T) {
	g := newTestGen(t, 1)
	p := plan{heap: []heapPlan{
		{header: values.Vlong(16), slots: []slot{{chunk: ast.Mint32, val: lit(values.Vint(9)), set: true}, {}}},
		{header: values.Vlong(8), slots: []slot{{chunk: ast.Mptr, val: heapPtr(0, 8), set: true}}, readonly: true},
	}}

	w, ok := p.build(g.m0, 0, false)
	require.True(t, ok)
	b0, b1 := w.heap[0].B, w.heap[1].B
	assert.Equal(t, g.m0.Next(), b0)
	assert.Equal(t, b0+1, b1)

	hdr, ok := w.mem.Load(ast.Mptr, b0, -8)
	require.True(t, ok)
	assert.Equal(t, values.Vlong(16), hdr)

	v, ok := w.mem.Load(ast.Mint32, b0, 0)
	require.True(t, ok)
	assert.Equal(t, values.Vint(9), v)

	// Heap pointers resolve to the first block.
	v, ok = w.mem.Load(ast.Mptr, b1, 0)
	require.True(t, ok)
	assert.Equal(t, values.Vptr{B: b0, Ofs: 8}, v)

	assert.False(t, w.mem.Perm(b1, 0, mem.Cur, mem.Writable))
	assert.True(t, w.mem.Perm(b1, 0, mem.Cur, mem.Readable))
}

func TestPlanPack_Layout(t *testing.T) {
	g := newTestGen(t, 1)
	p := plan{heap: []heapPlan{
		{header: values.Vlong(16), slots: []slot{{chunk: ast.Mint32, val: lit(values.Vint(9)), set: true}, {}}},
		{header: values.Vlong(8), slots: []slot{{chunk: ast.Mptr, val: heapPtr(0, 8), set: true}}, readonly: true},
	}}

	w, ok := p.pack(g.m0, 8)
	require.True(t, ok)
	big := g.m0.Next()
	assert.Equal(t, []values.Vptr{{B: big, Ofs: 16}, {B: big, Ofs: 48}}, w.heap)
	lo, hi, _ := w.mem.Bounds(big)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(64), hi)

	hdr, ok := w.mem.Load(ast.Mptr, big, 8)
	require.True(t, ok)
	assert.Equal(t, values.Vlong(16), hdr)

	v, ok := w.mem.Load(ast.Mptr, big, 48)
	require.True(t, ok)
	assert.Equal(t, values.Vptr{B: big, Ofs: 24}, v, "heap pointers are shifted with their block")
	assert.False(t, w.mem.Perm(big, 48, mem.Cur, mem.Writable))
	assert.True(t, w.mem.Perm(big, 40, mem.Cur, mem.Writable), "the second header stays writable")

	src, ok := p.build(g.m0, 0, false)
	require.True(t, ok)
	f := p.inject(g.m0, src, w)
	tgt, ok := f.Lookup(src.heap[1].B)
	require.True(t, ok)
	assert.Equal(t, values.Target{B: big, Delta: 48}, tgt)
	assert.True(t, mem.Inject(f, src.mem, w.mem))
}

func TestPlanBuild_Worlds(t *testing.T) {
	g := newTestGen(t, 2)
	for range 50 {
		p := g.plan(2)
		w, ok := p.build(g.m0, 0, false)
		require.True(t, ok)
		ext, ok := p.build(g.m0, 0, true)
		require.True(t, ok)
		inj, ok := p.build(g.m0, 2, false)
		require.True(t, ok)
		packed, ok := p.pack(g.m0, 8*g.r.Int64N(3))
		require.True(t, ok)

		assert.True(t, mem.Extends(w.mem, ext.mem))
		assert.Equal(t, w.heap[0].B+2, inj.heap[0].B)
		assert.True(t, mem.Inject(p.inject(g.m0, w, inj), w.mem, inj.mem))
		assert.True(t, mem.Inject(p.inject(g.m0, w, packed), w.mem, packed.mem))
	}
}

// Half of the generated cases check the injection law against a layout
// with nonzero offsets.
func TestGen_PackedInjections(t *testing.T) {
	g := newTestGen(t, 6)
	s := extcall.Memcpy{Size: 8, Align: 8}
	shifted := 0
	for range 40 {
		c, ok := g.testCase(s)
		if !ok {
			continue
		}
		for _, b := range c.f.Domain() {
			if tgt, _ := c.f.Lookup(b); tgt.Delta != 0 {
				assert.Zero(t, tgt.Delta%8)
				shifted++
			}
		}
		assert.True(t, mem.Inject(c.f, c.in.Mem, c.inj.Mem))
		assert.True(t, values.InjectList(c.f, c.in.Args, c.inj.Args))
	}
	assert.Positive(t, shifted)
}

func TestGen_Deterministic(t *testing.T) {
	s := extcall.VolatileLoad{Chunk: ast.Mint32}
	g1 := newTestGen(t, 3)
	g2 := newTestGen(t, 3)

	for range 20 {
		c1, ok1 := g1.testCase(s)
		c2, ok2 := g2.testCase(s)
		require.Equal(t, ok1, ok2)
		if !ok1 {
			continue
		}
		assert.True(t, values.EqualList(c1.in.Args, c2.in.Args))
		assert.True(t, mem.Equal(c1.in.Mem, c2.in.Mem))
		assert.Equal(t, c1.seeds, c2.seeds)
	}
}

func TestGen_InputsMatchSignature(t *testing.T) {
	g := newTestGen(t, 4)
	for _, s := range CatalogOps(extcall.DefaultMaxAllocSize) {
		c, ok := g.testCase(s)
		if !ok {
			continue
		}
		assert.Len(t, c.in.Args, len(s.Signature().Args), extcall.OpName(s))
		assert.Len(t, c.ext.Args, len(c.in.Args))
		assert.Len(t, c.inj.Args, len(c.in.Args))
		assert.True(t, values.LessdefList(c.in.Args, c.ext.Args), extcall.OpName(s))
	}
}

func TestGen_VolatileTargets(t *testing.T) {
	g := newTestGen(t, 5)
	dev, ok := g.ge.FindSymbol("dev")
	require.True(t, ok)

	hits := 0
	for range 100 {
		_, args := g.input(extcall.VolatileLoad{Chunk: ast.Mint32})
		if p, ok := args[0].v.(values.Vptr); ok && args[0].heap < 0 && p.B == dev {
			hits++
			assert.Zero(t, p.Ofs%4)
		}
	}
	assert.Greater(t, hits, 0)
}
