package extcall

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/values"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("read", SyscallHook("read", ast.Sig(ast.Tint, ast.Tint))))

	err := r.Register("read", SyscallHook("read", ast.Sig(ast.Tlong)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	s, ok := r.Lookup("read", ast.Sig(ast.Tint, ast.Tint))
	require.True(t, ok)
	assert.Equal(t, "syscall read", OpName(s))

	_, ok = r.Lookup("read", ast.Sig(ast.Tlong, ast.Tint))
	assert.False(t, ok, "signature must match")
	_, ok = r.Lookup("write", ast.Sig(ast.Tint, ast.Tint))
	assert.False(t, ok)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterPureBuiltins(r))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := r.Lookup("__builtin_fabs", ast.Sig(ast.Tfloat, ast.Tfloat))
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{
		"__builtin_bswap", "__builtin_bswap16", "__builtin_bswap64",
		"__builtin_fabs", "__builtin_fsqrt",
	}, r.Names())
	assert.Error(t, RegisterPureBuiltins(r), "second registration collides")
}

func TestSyscall_EmitsEvent(t *testing.T) {
	ge, m := testEnv(t)
	s := SyscallHook("write", ast.Sig(ast.Tint, ast.Tint, ast.Tptr))

	out, ok := s.Step(ge, []values.Val{values.Vint(1), values.Vptr{B: 1, Ofs: 4}}, m, answer(events.EVInt(7)))
	require.True(t, ok)
	assert.Equal(t, values.Vint(7), out.Res)
	assert.Same(t, m, out.Mem)
	require.Len(t, out.Trace, 1)
	assert.Equal(t, `syscall write(1, &g+4) = 7`, out.Trace.String())
}

func TestSyscall_Rejects(t *testing.T) {
	ge, m := testEnv(t)
	s := SyscallHook("write", ast.Sig(ast.Tint, ast.Tint, ast.Tptr))

	tests := []struct {
		name string
		args []values.Val
		o    Oracle
	}{
		{"private pointer", []values.Val{values.Vint(1), values.Vptr{B: 4}}, DefaultOracle},
		{"heap pointer", []values.Val{values.Vint(1), values.Vptr{B: 9}}, DefaultOracle},
		{"undefined argument", []values.Val{values.Undef, values.Vptr{B: 1}}, DefaultOracle},
		{"wrong arity", []values.Val{values.Vint(1)}, DefaultOracle},
		{"answer of wrong type", []values.Val{values.Vint(1), values.Vptr{B: 1}}, answer(events.EVLong(7))},
		{"answer names private symbol", []values.Val{values.Vint(1), values.Vptr{B: 1}}, answer(events.EVPtrGlobal{ID: "hidden"})},
		{"no answer", []values.Val{values.Vint(1), values.Vptr{B: 1}}, OracleFunc(func(Query) (events.Eventval, bool) { return nil, false })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Step(ge, tt.args, m, tt.o)
			assert.False(t, ok)
		})
	}
}

func TestSyscall_AnyResult(t *testing.T) {
	ge, m := testEnv(t)
	s := SyscallHook("peek", ast.Sig(ast.Tany64, ast.Tlong))

	out, ok := s.Step(ge, []values.Val{values.Vptr{B: 1, Ofs: 8}}, m, answer(events.EVFloat(0.5)))
	require.True(t, ok)
	assert.Equal(t, values.Val(values.Vfloat(0.5)), out.Res)
	assert.Equal(t, `syscall peek(&g+8) = 0.5`, out.Trace.String())

	out, ok = s.Step(ge, []values.Val{values.Vlong(3)}, m, DefaultOracle)
	require.True(t, ok)
	assert.Equal(t, values.Val(values.Vlong(0)), out.Res)

	narrow := SyscallHook("peek32", ast.Sig(ast.Tany32))
	_, ok = narrow.Step(ge, nil, m, answer(events.EVPtrGlobal{ID: "g"}))
	assert.False(t, ok, "pointers do not fit any32")
}

func TestSyscall_VoidResult(t *testing.T) {
	ge, m := testEnv(t)
	s := SyscallHook("sync", ast.Sig(ast.Tvoid))

	var asked ast.Typ
	o := OracleFunc(func(q Query) (events.Eventval, bool) {
		asked = q.Type
		return events.EVInt(0), true
	})
	out, ok := s.Step(ge, nil, m, o)
	require.True(t, ok)
	assert.Equal(t, ast.Tint, asked)
	assert.Equal(t, values.Undef, out.Res)
	assert.True(t, out.Trace.Equal(events.One(events.Syscall{Name: "sync", Res: events.EVInt(0)})))
}

func TestPureBuiltins(t *testing.T) {
	ge, m := testEnv(t)
	byName := map[string]Pure{}
	for _, b := range PureBuiltins() {
		byName[b.Name] = b
	}

	tests := []struct {
		name string
		arg  values.Val
		want values.Val
	}{
		{"__builtin_bswap", values.Vint(0x11223344), values.Vint(0x44332211)},
		{"__builtin_bswap16", values.Vint(0x1234), values.Vint(0x3412)},
		{"__builtin_bswap64", values.Vlong(0x0102030405060708), values.Vlong(0x0807060504030201)},
		{"__builtin_fabs", values.Vfloat(-2.5), values.Vfloat(2.5)},
		{"__builtin_fsqrt", values.Vfloat(9), values.Vfloat(3)},
		{"__builtin_bswap", values.Vlong(1), values.Undef},
		{"__builtin_fabs", values.Undef, values.Undef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := byName[tt.name].Step(ge, []values.Val{tt.arg}, m, DefaultOracle)
			require.True(t, ok)
			assert.Empty(t, out.Trace)
			assert.Same(t, m, out.Mem)
			assert.True(t, values.Equal(tt.want, out.Res), "got %v", out.Res)
		})
	}

	t.Run("sqrt of negative is nan", func(t *testing.T) {
		out, ok := byName["__builtin_fsqrt"].Step(ge, []values.Val{values.Vfloat(-1)}, m, DefaultOracle)
		require.True(t, ok)
		f, isFloat := out.Res.(values.Vfloat)
		require.True(t, isFloat)
		assert.True(t, math.IsNaN(float64(f)))
	})
	t.Run("wrong arity", func(t *testing.T) {
		_, ok := byName["__builtin_fabs"].Step(ge, nil, m, DefaultOracle)
		assert.False(t, ok)
	})
}
