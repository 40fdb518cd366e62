package genv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

func fixture() *Globalenv {
	return New().
		MustAdd("counter", Global{Size: 8, Public: true}).
		MustAdd("port", Global{Size: 4, Public: true, Volatile: true}).
		MustAdd("table", Global{
			ReadOnly: true,
			Init:     []Datum{DInt{Chunk: ast.Mint32, V: 7}, DSpace{N: 4}, DAddrOf{Symbol: "counter", Ofs: 2}},
		}).
		MustAdd("secret", Global{Size: 4}).
		MustAdd("main", Global{Func: true, Public: true})
}

func TestGlobalenv_Queries(t *testing.T) {
	ge := fixture()

	b, ok := ge.FindSymbol("port")
	require.True(t, ok)
	assert.Equal(t, values.Block(2), b)

	id, ok := ge.InvertSymbol(b)
	require.True(t, ok)
	assert.Equal(t, "port", id)

	assert.True(t, ge.IsVolatile(b))
	assert.False(t, ge.IsVolatile(1))
	assert.False(t, ge.IsPublic("secret"))
	assert.False(t, ge.IsPublic("missing"))
	assert.Equal(t, []string{"counter", "port", "table", "secret", "main"}, ge.Symbols())
	assert.Equal(t, values.Block(6), ge.Next())

	assert.Equal(t, values.Val(values.Vptr{B: 1, Ofs: 3}), SymbolAddress(ge, "counter", 3))
	assert.Equal(t, values.Undef, SymbolAddress(ge, "missing", 0))
}

func TestGlobalenv_DuplicateRejected(t *testing.T) {
	ge := New().MustAdd("x", Global{Size: 4})
	err := ge.Add("x", Global{Size: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Error(t, ge.Add("", Global{}))
}

func TestInitMem(t *testing.T) {
	ge := fixture()
	m, err := ge.InitMem()
	require.NoError(t, err)

	assert.Equal(t, ge.Next(), m.Next())

	t.Run("writable zeroed", func(t *testing.T) {
		v, ok := m.Load(ast.Mint64, 1, 0)
		require.True(t, ok)
		assert.Equal(t, values.Val(values.Vlong(0)), v)
		assert.True(t, m.Perm(1, 0, mem.Max, mem.Writable))
		assert.False(t, m.Perm(1, 0, mem.Max, mem.Freeable))
	})
	t.Run("volatile unreadable", func(t *testing.T) {
		_, ok := m.Load(ast.Mint32, 2, 0)
		assert.False(t, ok)
		assert.True(t, m.Perm(2, 0, mem.Max, mem.Nonempty))
	})
	t.Run("read-only initialized", func(t *testing.T) {
		v, ok := m.Load(ast.Mint32, 3, 0)
		require.True(t, ok)
		assert.Equal(t, values.Val(values.Vint(7)), v)
		v, ok = m.Load(ast.Mint64, 3, 8)
		require.True(t, ok)
		assert.Equal(t, values.Val(values.Vptr{B: 1, Ofs: 2}), v)
		_, ok = m.Store(ast.Mint32, 3, 0, values.Vint(1))
		assert.False(t, ok)
	})
	t.Run("function block", func(t *testing.T) {
		lo, hi, ok := m.Bounds(5)
		require.True(t, ok)
		assert.Equal(t, int64(0), lo)
		assert.Equal(t, int64(1), hi)
		assert.Equal(t, mem.Nonempty, m.PermAt(5, 0, mem.Cur))
	})
}

func TestInitMem_UnknownAddress(t *testing.T) {
	ge := New().MustAdd("p", Global{Init: []Datum{DAddrOf{Symbol: "nope"}}})
	_, err := ge.InitMem()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestEquivalent(t *testing.T) {
	ge := fixture()
	snap := Snapshot(ge)
	assert.True(t, Equivalent(ge, snap))
	assert.True(t, Equivalent(snap, ge))

	other := New().
		MustAdd("counter", Global{Size: 64, Public: true, Init: []Datum{DInt{Chunk: ast.Mint8unsigned, V: 1}}}).
		MustAdd("port", Global{Size: 4, Public: true, Volatile: true}).
		MustAdd("table", Global{ReadOnly: true}).
		MustAdd("secret", Global{Size: 4}).
		MustAdd("main", Global{Func: true, Public: true})
	assert.True(t, Equivalent(ge, other), "definitions are not observed")

	quiet := New().
		MustAdd("counter", Global{Size: 8, Public: true}).
		MustAdd("port", Global{Size: 4, Public: true})
	assert.False(t, Equivalent(ge, quiet))
}

func TestSymbolsInject(t *testing.T) {
	ge := fixture()
	id := values.IdentityInj(ge.Next())
	assert.True(t, SymbolsInject(id, ge, ge))

	t.Run("private symbols may stay unmapped", func(t *testing.T) {
		f := values.EmptyInj()
		for _, name := range []string{"counter", "port", "table", "main"} {
			b, _ := ge.FindSymbol(name)
			f = f.Set(b, values.Target{B: b})
		}
		assert.True(t, SymbolsInject(f, ge, ge))
	})
	t.Run("public symbol must be mapped", func(t *testing.T) {
		f := values.EmptyInj().Set(2, values.Target{B: 2})
		assert.False(t, SymbolsInject(f, ge, ge))
	})
	t.Run("symbol blocks move with zero delta", func(t *testing.T) {
		f := id.Set(1, values.Target{B: 1, Delta: 8})
		assert.False(t, SymbolsInject(f, ge, ge))
	})
	t.Run("volatility preserved", func(t *testing.T) {
		f := id.Set(9, values.Target{B: 2})
		assert.False(t, SymbolsInject(f, ge, ge))
	})
}
