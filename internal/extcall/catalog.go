package extcall

import (
	"fmt"
	"math"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// VolatileLoad reads a value of Chunk. Reading a volatile global emits a
// VLoad event whose result the environment supplies; any other address is
// an ordinary load.
type VolatileLoad struct{ Chunk ast.Chunk }

func (s VolatileLoad) Signature() ast.Signature { return ast.EFVLoad{Chunk: s.Chunk}.Signature() }
func (s VolatileLoad) String() string           { return ast.EFVLoad{Chunk: s.Chunk}.Name() }

func (s VolatileLoad) Step(ge genv.Env, args []values.Val, m *mem.Mem, o Oracle) (Outcome, bool) {
	if len(args) != 1 {
		return none()
	}
	p, ok := args[0].(values.Vptr)
	if !ok {
		return none()
	}
	if ge.IsVolatile(p.B) {
		id, ok := ge.InvertSymbol(p.B)
		if !ok {
			return none()
		}
		req := events.VLoad{Chunk: s.Chunk, ID: id, Ofs: p.Ofs}
		ev, v, ok := ask(o, ge, req, s.Chunk.Type())
		if !ok {
			return none()
		}
		req.Res = ev
		return Outcome{Trace: events.One(req), Res: values.LoadResult(s.Chunk, v), Mem: m}, true
	}
	v, ok := m.Load(s.Chunk, p.B, p.Ofs)
	if !ok {
		return none()
	}
	return Outcome{Res: v, Mem: m}, true
}

// VolatileStore writes a value of Chunk. Writing a volatile global emits a
// VStore event carrying the value and leaves memory alone; any other
// address is an ordinary store.
type VolatileStore struct{ Chunk ast.Chunk }

func (s VolatileStore) Signature() ast.Signature { return ast.EFVStore{Chunk: s.Chunk}.Signature() }
func (s VolatileStore) String() string           { return ast.EFVStore{Chunk: s.Chunk}.Name() }

func (s VolatileStore) Step(ge genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != 2 {
		return none()
	}
	p, ok := args[0].(values.Vptr)
	if !ok {
		return none()
	}
	if ge.IsVolatile(p.B) {
		id, ok := ge.InvertSymbol(p.B)
		if !ok {
			return none()
		}
		ev, ok := events.OfVal(ge, s.Chunk.Type(), values.LoadResult(s.Chunk, args[1]))
		if !ok {
			return none()
		}
		t := events.One(events.VStore{Chunk: s.Chunk, ID: id, Ofs: p.Ofs, Arg: ev})
		return Outcome{Trace: t, Res: values.Undef, Mem: m}, true
	}
	m2, ok := m.Store(s.Chunk, p.B, p.Ofs, args[1])
	if !ok {
		return none()
	}
	return Outcome{Res: values.Undef, Mem: m2}, true
}

// DefaultMaxAllocSize bounds the size Malloc accepts.
const DefaultMaxAllocSize = 1 << 20

// Malloc allocates a block holding a pointer-sized header with the
// requested size, followed by the body. The result points at the body.
type Malloc struct {
	// MaxSize bounds accepted sizes; zero means DefaultMaxAllocSize.
	MaxSize int64
}

func (Malloc) Signature() ast.Signature { return ast.EFMalloc{}.Signature() }
func (Malloc) String() string           { return "malloc" }

func (s Malloc) Step(_ genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != 1 {
		return none()
	}
	n, ok := args[0].(values.Vlong)
	if !ok {
		return none()
	}
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxAllocSize
	}
	// sizes are unsigned, so negative ones are huge
	if uint64(n) > uint64(limit) {
		return none()
	}
	m1, b := m.Alloc(-ast.PtrSize, int64(n))
	m2, ok := m1.Store(ast.Mptr, b, -ast.PtrSize, n)
	if !ok {
		return none()
	}
	return Outcome{Res: values.Vptr{B: b, Ofs: 0}, Mem: m2}, true
}

// Free releases a block obtained from Malloc, header included. The size is
// read back from the header. Freeing the null pointer does nothing.
type Free struct{}

func (Free) Signature() ast.Signature { return ast.EFFree{}.Signature() }
func (Free) String() string           { return "free" }

func (Free) Step(_ genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != 1 {
		return none()
	}
	if values.Equal(args[0], values.Nullptr) {
		return Outcome{Res: values.Undef, Mem: m}, true
	}
	p, ok := args[0].(values.Vptr)
	if !ok {
		return none()
	}
	lo, ok := offset(p.Ofs, -ast.PtrSize)
	if !ok {
		return none()
	}
	hdr, ok := m.Load(ast.Mptr, p.B, lo)
	if !ok {
		return none()
	}
	size, ok := hdr.(values.Vlong)
	if !ok || size <= 0 {
		return none()
	}
	hi, ok := offset(p.Ofs, int64(size))
	if !ok {
		return none()
	}
	m2, ok := m.Free(p.B, lo, hi)
	if !ok {
		return none()
	}
	return Outcome{Res: values.Undef, Mem: m2}, true
}

// Memcpy copies Size bytes from the second argument to the first. Both
// addresses must be aligned to Align when anything is copied, and the
// regions must be disjoint or coincide exactly.
type Memcpy struct {
	Size  int64
	Align int64
}

func (s Memcpy) Signature() ast.Signature {
	return ast.EFMemcpy{Size: s.Size, Align: s.Align}.Signature()
}
func (s Memcpy) String() string { return ast.EFMemcpy{Size: s.Size, Align: s.Align}.Name() }

func (s Memcpy) Step(_ genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != 2 {
		return none()
	}
	dst, ok1 := args[0].(values.Vptr)
	src, ok2 := args[1].(values.Vptr)
	if !ok1 || !ok2 {
		return none()
	}
	switch s.Align {
	case 1, 2, 4, 8:
	default:
		return none()
	}
	if s.Size < 0 || s.Size%s.Align != 0 {
		return none()
	}
	if s.Size > 0 && (src.Ofs%s.Align != 0 || dst.Ofs%s.Align != 0) {
		return none()
	}
	srcEnd, ok1 := offset(src.Ofs, s.Size)
	dstEnd, ok2 := offset(dst.Ofs, s.Size)
	if !ok1 || !ok2 {
		return none()
	}
	disjoint := src.B != dst.B || src.Ofs == dst.Ofs ||
		srcEnd <= dst.Ofs || dstEnd <= src.Ofs
	if !disjoint {
		return none()
	}
	bytes, ok := m.LoadBytes(src.B, src.Ofs, s.Size)
	if !ok {
		return none()
	}
	m2, ok := m.StoreBytes(dst.B, dst.Ofs, bytes)
	if !ok {
		return none()
	}
	return Outcome{Res: values.Undef, Mem: m2}, true
}

// Annotation emits an Annot event carrying its arguments.
type Annotation struct {
	Text  string
	Types []ast.Typ
}

func (s Annotation) Signature() ast.Signature { return ast.Sig(ast.Tvoid, s.Types...) }
func (s Annotation) String() string           { return ast.EFAnnot{Text: s.Text}.Name() }

func (s Annotation) Step(ge genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	evs, ok := events.OfVals(ge, s.Types, args)
	if !ok {
		return none()
	}
	t := events.One(events.Annot{Text: s.Text, Args: evs})
	return Outcome{Trace: t, Res: values.Undef, Mem: m}, true
}

// AnnotationValue is Annotation on a single argument, which it returns.
type AnnotationValue struct {
	Text string
	Type ast.Typ
}

func (s AnnotationValue) Signature() ast.Signature { return ast.Sig(s.Type, s.Type) }
func (s AnnotationValue) String() string           { return ast.EFAnnotVal{Text: s.Text}.Name() }

func (s AnnotationValue) Step(ge genv.Env, args []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	if len(args) != 1 {
		return none()
	}
	ev, ok := events.OfVal(ge, s.Type, args[0])
	if !ok {
		return none()
	}
	t := events.One(events.Annot{Text: s.Text, Args: []events.Eventval{ev}})
	return Outcome{Trace: t, Res: args[0], Mem: m}, true
}

// Debug accepts any arguments and does nothing, so it can always be
// erased.
type Debug struct {
	Kind  int
	Text  string
	Types []ast.Typ
}

func (s Debug) Signature() ast.Signature { return ast.Sig(ast.Tvoid, s.Types...) }
func (s Debug) String() string           { return fmt.Sprintf("debug %d %q", s.Kind, s.Text) }

func (Debug) Step(_ genv.Env, _ []values.Val, m *mem.Mem, _ Oracle) (Outcome, bool) {
	return Outcome{Res: values.Undef, Mem: m}, true
}

// offset is ofs+n, failing when the sum leaves the int64 range.
func offset(ofs, n int64) (int64, bool) {
	if (n > 0 && ofs > math.MaxInt64-n) || (n < 0 && ofs < math.MinInt64-n) {
		return 0, false
	}
	return ofs + n, true
}
