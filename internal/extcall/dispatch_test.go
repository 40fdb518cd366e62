package extcall

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/values"
)

func TestResolve_Catalog(t *testing.T) {
	tests := []struct {
		ef   ast.ExternalFunction
		want Sem
	}{
		{ast.EFVLoad{Chunk: ast.Mint8unsigned}, VolatileLoad{Chunk: ast.Mint8unsigned}},
		{ast.EFVStore{Chunk: ast.Mfloat64}, VolatileStore{Chunk: ast.Mfloat64}},
		{ast.EFMalloc{}, Malloc{MaxSize: 64}},
		{ast.EFFree{}, Free{}},
		{ast.EFMemcpy{Size: 16, Align: 4}, Memcpy{Size: 16, Align: 4}},
		{ast.EFAnnot{Text: "a", Types: []ast.Typ{ast.Tint}}, Annotation{Text: "a", Types: []ast.Typ{ast.Tint}}},
		{ast.EFAnnotVal{Text: "v", Type: ast.Tfloat}, AnnotationValue{Text: "v", Type: ast.Tfloat}},
		{ast.EFDebug{Kind: 1, Text: "d"}, Debug{Kind: 1, Text: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.ef.Name(), func(t *testing.T) {
			s, err := Resolve(tt.ef, nil, 64)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
			assert.True(t, s.Signature().Equal(tt.ef.Signature()))
		})
	}
}

func TestResolve_Hooks(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterPureBuiltins(r))
	require.NoError(t, r.Register("getc", SyscallHook("getc", ast.Sig(ast.Tint))))
	require.NoError(t, r.Register("nop", SyscallHook("nop", ast.Sig(ast.Tvoid))))
	sig := ast.Sig(ast.Tint, ast.Tint)

	t.Run("every hook tag shares the lookup", func(t *testing.T) {
		for _, ef := range []ast.ExternalFunction{
			ast.EFExternal{Func: "__builtin_bswap", Sig: sig},
			ast.EFBuiltin{Func: "__builtin_bswap", Sig: sig},
			ast.EFRuntime{Func: "__builtin_bswap", Sig: sig},
		} {
			s, err := Resolve(ef, r, 0)
			require.NoError(t, err)
			assert.Equal(t, "__builtin_bswap", OpName(s))
		}
	})
	t.Run("inline asm by text", func(t *testing.T) {
		s, err := Resolve(ast.EFInlineAsm{Text: "nop", Sig: ast.Sig(ast.Tvoid)}, r, 0)
		require.NoError(t, err)
		assert.Equal(t, "syscall nop", OpName(s))
	})
	t.Run("unknown name", func(t *testing.T) {
		_, err := Resolve(ast.EFExternal{Func: "open", Sig: sig}, r, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownExternal))
		assert.Contains(t, err.Error(), "open")
	})
	t.Run("signature mismatch", func(t *testing.T) {
		_, err := Resolve(ast.EFExternal{Func: "getc", Sig: sig}, r, 0)
		assert.ErrorIs(t, err, ErrUnknownExternal)
	})
	t.Run("nil hooks", func(t *testing.T) {
		_, err := Resolve(ast.EFBuiltin{Func: "__builtin_bswap", Sig: sig}, nil, 0)
		assert.ErrorIs(t, err, ErrUnknownExternal)
	})
}

func TestDispatch_UnknownIsStuck(t *testing.T) {
	ge, m := testEnv(t)
	ef := ast.EFExternal{Func: "open", Sig: ast.Sig(ast.Tint)}
	s := Dispatch(ef, NewRegistry())
	assert.True(t, s.Signature().Equal(ef.Signature()))
	assert.Equal(t, "open", OpName(s))

	_, ok := s.Step(ge, nil, m, DefaultOracle)
	assert.False(t, ok)
}

func TestCall(t *testing.T) {
	ge, m := testEnv(t)
	r := NewRegistry()
	require.NoError(t, r.Register("getc", SyscallHook("getc", ast.Sig(ast.Tint))))

	out, ok := Call(ast.EFRuntime{Func: "getc", Sig: ast.Sig(ast.Tint)}, r, ge, nil, m, answer(events.EVInt(65)))
	require.True(t, ok)
	assert.Equal(t, values.Vint(65), out.Res)

	_, ok = Call(ast.EFMalloc{}, r, ge, []values.Val{values.Vlong(DefaultMaxAllocSize + 1)}, m, DefaultOracle)
	assert.False(t, ok, "default allocation bound applies")
}
