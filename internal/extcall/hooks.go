package extcall

import (
	"fmt"
	"math/bits"
	"slices"
	"sync"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/floats"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// Hooks supplies the semantics of operations defined outside this
// package: named externals, builtins, runtime helpers and inline assembly
// (looked up by its text). The hook kind does not take part in the lookup.
type Hooks interface {
	Lookup(name string, sig ast.Signature) (Sem, bool)
}

// Registry is a Hooks backed by a map. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	sems map[string]Sem
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sems: make(map[string]Sem)}
}

// Register adds the semantics of name. Names are unique.
func (r *Registry) Register(name string, s Sem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sems[name]; dup {
		return fmt.Errorf("hook %q already registered", name)
	}
	r.sems[name] = s
	return nil
}

// Lookup finds name, provided it was registered with the same signature.
func (r *Registry) Lookup(name string, sig ast.Signature) (Sem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sems[name]
	if !ok || !s.Signature().Equal(sig) {
		return nil, false
	}
	return s, true
}

// Names lists registered hooks in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sems))
	for n := range r.sems {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Syscall is a system call: it emits a Syscall event with its arguments,
// and the environment supplies the result. Memory is left alone.
type Syscall struct {
	Name string
	Sig  ast.Signature
}

// SyscallHook returns the reference semantics of a system call.
func SyscallHook(name string, sig ast.Signature) Syscall {
	return Syscall{Name: name, Sig: sig}
}

func (s Syscall) Signature() ast.Signature { return s.Sig }
func (s Syscall) String() string           { return "syscall " + s.Name }

func (s Syscall) Step(ge genv.Env, args []values.Val, m *mem.Mem, o Oracle) (Outcome, bool) {
	evs, ok := events.OfVals(ge, s.Sig.Args, args)
	if !ok {
		return none()
	}
	// a void call still gets an answer; it is not returned
	ty := s.Sig.Res
	if ty == ast.Tvoid {
		ty = ast.Tint
	}
	req := events.Syscall{Name: s.Name, Args: evs}
	ev, v, ok := ask(o, ge, req, ty)
	if !ok {
		return none()
	}
	req.Res = ev
	if s.Sig.Res == ast.Tvoid {
		v = values.Undef
	}
	return Outcome{Trace: events.One(req), Res: v, Mem: m}, true
}

// Pure is a builtin computing its result from its arguments alone. It
// emits nothing and leaves memory alone. Arguments of the wrong kind give
// an undefined result.
type Pure struct {
	Name string
	Sig  ast.Signature
	Fn   func(args []values.Val) values.Val
}

func (s Pure) Signature() ast.Signature { return s.Sig }
func (s Pure) String() string           { return s.Name }

func (s Pure) Step(_ genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != len(s.Sig.Args) {
		return none()
	}
	return Outcome{Res: s.Fn(args), Mem: m}, true
}

func unaryInt(f func(int32) int32) func([]values.Val) values.Val {
	return func(args []values.Val) values.Val {
		if n, ok := args[0].(values.Vint); ok {
			return values.Vint(f(int32(n)))
		}
		return values.Undef
	}
}

func unaryFloat(f func(float64) float64) func([]values.Val) values.Val {
	return func(args []values.Val) values.Val {
		if x, ok := args[0].(values.Vfloat); ok {
			return values.Vfloat(f(float64(x)))
		}
		return values.Undef
	}
}

// PureBuiltins returns the byte-swap and floating-point builtins.
func PureBuiltins() []Pure {
	return []Pure{
		{
			Name: "__builtin_bswap",
			Sig:  ast.Sig(ast.Tint, ast.Tint),
			Fn:   unaryInt(func(n int32) int32 { return int32(bits.ReverseBytes32(uint32(n))) }),
		},
		{
			Name: "__builtin_bswap16",
			Sig:  ast.Sig(ast.Tint, ast.Tint),
			Fn:   unaryInt(func(n int32) int32 { return int32(bits.ReverseBytes16(uint16(n))) }),
		},
		{
			Name: "__builtin_bswap64",
			Sig:  ast.Sig(ast.Tlong, ast.Tlong),
			Fn: func(args []values.Val) values.Val {
				if n, ok := args[0].(values.Vlong); ok {
					return values.Vlong(int64(bits.ReverseBytes64(uint64(n))))
				}
				return values.Undef
			},
		},
		{
			Name: "__builtin_fabs",
			Sig:  ast.Sig(ast.Tfloat, ast.Tfloat),
			Fn:   unaryFloat(floats.Abs),
		},
		{
			Name: "__builtin_fsqrt",
			Sig:  ast.Sig(ast.Tfloat, ast.Tfloat),
			Fn:   unaryFloat(floats.Sqrt),
		},
	}
}

// RegisterPureBuiltins adds PureBuiltins to r.
func RegisterPureBuiltins(r *Registry) error {
	for _, b := range PureBuiltins() {
		if err := r.Register(b.Name, b); err != nil {
			return err
		}
	}
	return nil
}
