// Package builtinarg evaluates the argument expressions of builtin calls:
// reads of local bindings, literals, and loads or addresses relative to the
// stack frame or to a global symbol.
//
// Arg is generic over the key type of local bindings so the same
// expressions serve register-based and variable-based callers.
package builtinarg

import (
	"fmt"

	"github.com/roach88/extcall/internal/ast"
)

// Arg is a builtin argument expression. It is a sealed interface.
type Arg[A comparable] interface {
	argOf(A)
}

// BA reads a local binding.
type BA[A comparable] struct{ X A }

// BAInt is a 32-bit literal.
type BAInt[A comparable] struct{ N int32 }

// BALong is a 64-bit literal.
type BALong[A comparable] struct{ N int64 }

// BAFloat is a double literal.
type BAFloat[A comparable] struct{ F float64 }

// BASingle is a single-precision literal.
type BASingle[A comparable] struct{ F float32 }

// BALoadStack loads Chunk at Ofs from the frame pointer.
type BALoadStack[A comparable] struct {
	Chunk ast.Chunk
	Ofs   int64
}

// BAAddrStack is the frame pointer plus Ofs.
type BAAddrStack[A comparable] struct{ Ofs int64 }

// BALoadGlobal loads Chunk at Ofs from symbol ID.
type BALoadGlobal[A comparable] struct {
	Chunk ast.Chunk
	ID    string
	Ofs   int64
}

// BAAddrGlobal is the address of symbol ID plus Ofs.
type BAAddrGlobal[A comparable] struct {
	ID  string
	Ofs int64
}

// BASplitLong joins two 32-bit halves into a long.
type BASplitLong[A comparable] struct{ Hi, Lo Arg[A] }

// BAAddPtr is 64-bit addition of two sub-arguments.
type BAAddPtr[A comparable] struct{ A1, A2 Arg[A] }

func (BA[A]) argOf(A)           {}
func (BAInt[A]) argOf(A)        {}
func (BALong[A]) argOf(A)       {}
func (BAFloat[A]) argOf(A)      {}
func (BASingle[A]) argOf(A)     {}
func (BALoadStack[A]) argOf(A)  {}
func (BAAddrStack[A]) argOf(A)  {}
func (BALoadGlobal[A]) argOf(A) {}
func (BAAddrGlobal[A]) argOf(A) {}
func (BASplitLong[A]) argOf(A)  {}
func (BAAddPtr[A]) argOf(A)     {}

func (a BA[A]) String() string       { return fmt.Sprint(a.X) }
func (a BAInt[A]) String() string    { return fmt.Sprintf("%d", a.N) }
func (a BALong[A]) String() string   { return fmt.Sprintf("%dL", a.N) }
func (a BAFloat[A]) String() string  { return fmt.Sprintf("%v", a.F) }
func (a BASingle[A]) String() string { return fmt.Sprintf("%vf", a.F) }
func (a BALoadStack[A]) String() string {
	return fmt.Sprintf("%s[sp%+d]", a.Chunk, a.Ofs)
}
func (a BAAddrStack[A]) String() string { return fmt.Sprintf("&sp%+d", a.Ofs) }
func (a BALoadGlobal[A]) String() string {
	return fmt.Sprintf("%s[%s%+d]", a.Chunk, a.ID, a.Ofs)
}
func (a BAAddrGlobal[A]) String() string { return fmt.Sprintf("&%s%+d", a.ID, a.Ofs) }
func (a BASplitLong[A]) String() string  { return fmt.Sprintf("%v:%v", a.Hi, a.Lo) }
func (a BAAddPtr[A]) String() string     { return fmt.Sprintf("%v+%v", a.A1, a.A2) }
