package extcall

import (
	"errors"
	"fmt"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// ErrUnknownExternal is returned by Resolve for hooks that are not
// registered with a matching signature.
var ErrUnknownExternal = errors.New("unknown external function")

// Resolve maps ef to its semantics. maxAlloc bounds Malloc; zero selects
// DefaultMaxAllocSize.
func Resolve(ef ast.ExternalFunction, hooks Hooks, maxAlloc int64) (Sem, error) {
	switch ef := ef.(type) {
	case ast.EFVLoad:
		return VolatileLoad{Chunk: ef.Chunk}, nil
	case ast.EFVStore:
		return VolatileStore{Chunk: ef.Chunk}, nil
	case ast.EFMalloc:
		return Malloc{MaxSize: maxAlloc}, nil
	case ast.EFFree:
		return Free{}, nil
	case ast.EFMemcpy:
		return Memcpy{Size: ef.Size, Align: ef.Align}, nil
	case ast.EFAnnot:
		return Annotation{Text: ef.Text, Types: ef.Types}, nil
	case ast.EFAnnotVal:
		return AnnotationValue{Text: ef.Text, Type: ef.Type}, nil
	case ast.EFDebug:
		return Debug{Kind: ef.Kind, Text: ef.Text, Types: ef.Types}, nil
	}
	kind, name, ok := ast.Hook(ef)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownExternal, ef)
	}
	if hooks != nil {
		if s, ok := hooks.Lookup(name, ef.Signature()); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s%s", ErrUnknownExternal, kind, name, ef.Signature())
}

// Dispatch is Resolve with a fallback: unknown hooks get a semantics with
// no outcome at all.
func Dispatch(ef ast.ExternalFunction, hooks Hooks) Sem {
	s, err := Resolve(ef, hooks, 0)
	if err != nil {
		return stuck{ef: ef}
	}
	return s
}

// Call runs ef once. It is the uniform entry point for callers that
// execute instructions.
func Call(ef ast.ExternalFunction, hooks Hooks, ge genv.Env, args []values.Val, m *mem.Mem, o Oracle) (Outcome, bool) {
	return Dispatch(ef, hooks).Step(ge, args, m, o)
}

// stuck is the empty relation.
type stuck struct{ ef ast.ExternalFunction }

func (s stuck) Signature() ast.Signature { return s.ef.Signature() }
func (s stuck) String() string           { return s.ef.Name() }

func (stuck) Step(genv.Env, []values.Val, *mem.Mem, Oracle) (Outcome, bool) {
	return none()
}
