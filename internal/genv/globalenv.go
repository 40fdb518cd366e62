package genv

import (
	"fmt"
	"slices"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/mem"
	"github.com/roach88/extcall/internal/values"
)

// Datum is one item of a global's initializer.
type Datum interface {
	Size() int64
	isDatum()
}

// DInt stores an integer with the given integer chunk.
type DInt struct {
	Chunk ast.Chunk
	V     int64
}

// DFloat stores a float with Mfloat32 or Mfloat64.
type DFloat struct {
	Chunk ast.Chunk
	V     float64
}

// DSpace is N zero bytes.
type DSpace struct{ N int64 }

// DAddrOf stores the address of another global.
type DAddrOf struct {
	Symbol string
	Ofs    int64
}

func (DInt) isDatum()    {}
func (DFloat) isDatum()  {}
func (DSpace) isDatum()  {}
func (DAddrOf) isDatum() {}

func (d DInt) Size() int64   { return d.Chunk.Size() }
func (d DFloat) Size() int64 { return d.Chunk.Size() }
func (d DSpace) Size() int64 { return max(d.N, 0) }
func (DAddrOf) Size() int64  { return ast.PtrSize }

// Global declares a global variable or function.
type Global struct {
	// Size is the minimal size of the block; initializers may extend it.
	Size     int64
	Init     []Datum
	Volatile bool
	ReadOnly bool
	Public   bool
	// Func marks a function symbol. Its block holds one inaccessible byte.
	Func bool
}

// BlockSize is the size of the block allocated for g.
func (g Global) BlockSize() int64 {
	if g.Func {
		return 1
	}
	n := int64(0)
	for _, d := range g.Init {
		n += d.Size()
	}
	return max(n, g.Size)
}

// Globalenv is the symbol environment of a program. Blocks are numbered in
// declaration order starting at 1, matching the order InitMem allocates
// them.
type Globalenv struct {
	order  []string
	blocks map[string]values.Block
	names  map[values.Block]string
	defs   map[string]Global
}

// New returns an empty environment.
func New() *Globalenv {
	return &Globalenv{
		blocks: make(map[string]values.Block),
		names:  make(map[values.Block]string),
		defs:   make(map[string]Global),
	}
}

// Add declares a global. Names must be unique.
func (g *Globalenv) Add(id string, def Global) error {
	if id == "" {
		return fmt.Errorf("global with empty name")
	}
	if _, dup := g.blocks[id]; dup {
		return fmt.Errorf("duplicate global %q", id)
	}
	b := values.Block(len(g.order) + 1)
	g.order = append(g.order, id)
	g.blocks[id] = b
	g.names[b] = id
	g.defs[id] = def
	return nil
}

// MustAdd is Add for fixtures; it panics on error.
func (g *Globalenv) MustAdd(id string, def Global) *Globalenv {
	if err := g.Add(id, def); err != nil {
		panic(err)
	}
	return g
}

// Def returns the declaration of a global.
func (g *Globalenv) Def(id string) (Global, bool) {
	d, ok := g.defs[id]
	return d, ok
}

func (g *Globalenv) FindSymbol(id string) (values.Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

func (g *Globalenv) InvertSymbol(b values.Block) (string, bool) {
	id, ok := g.names[b]
	return id, ok
}

func (g *Globalenv) IsPublic(id string) bool {
	return g.defs[id].Public
}

func (g *Globalenv) IsVolatile(b values.Block) bool {
	id, ok := g.names[b]
	return ok && !g.defs[id].Func && g.defs[id].Volatile
}

func (g *Globalenv) Symbols() []string { return slices.Clone(g.order) }

// Next is the first block not reserved for a global.
func (g *Globalenv) Next() values.Block { return values.Block(len(g.order) + 1) }

// perm is the permission globals are left with once initialized. Volatile
// globals can only be reached through volatile operations.
func (d Global) perm() mem.Perm {
	switch {
	case d.Func:
		return mem.Nonempty
	case d.Volatile:
		return mem.Nonempty
	case d.ReadOnly:
		return mem.Readable
	default:
		return mem.Writable
	}
}

// InitMem allocates and initializes every global in declaration order.
func (g *Globalenv) InitMem() (*mem.Mem, error) {
	m := mem.Empty()
	for _, id := range g.order {
		def := g.defs[id]
		size := def.BlockSize()
		var b values.Block
		m, b = m.Alloc(0, size)
		if b != g.blocks[id] {
			return nil, fmt.Errorf("global %q: allocated block %d, expected %d", id, b, g.blocks[id])
		}
		if !def.Func {
			var err error
			if m, err = g.storeInit(m, b, size, def.Init); err != nil {
				return nil, fmt.Errorf("global %q: %w", id, err)
			}
		}
		var ok bool
		if m, ok = m.DropPerm(b, 0, size, def.perm()); !ok {
			return nil, fmt.Errorf("global %q: cannot set permissions", id)
		}
	}
	return m, nil
}

func (g *Globalenv) storeInit(m *mem.Mem, b values.Block, size int64, init []Datum) (*mem.Mem, error) {
	zeros := make([]mem.MemVal, size)
	for i := range zeros {
		zeros[i] = mem.Byte(0)
	}
	m, ok := m.StoreBytes(b, 0, zeros)
	if !ok {
		return nil, fmt.Errorf("cannot zero block")
	}
	ofs := int64(0)
	for _, d := range init {
		var v values.Val
		chunk := ast.Mptr
		switch d := d.(type) {
		case DInt:
			chunk = d.Chunk
			if chunk == ast.Mint64 {
				v = values.Vlong(d.V)
			} else {
				v = values.Vint(int32(d.V))
			}
		case DFloat:
			chunk = d.Chunk
			if chunk == ast.Mfloat32 {
				v = values.Vsingle(float32(d.V))
			} else {
				v = values.Vfloat(d.V)
			}
		case DAddrOf:
			v = SymbolAddress(g, d.Symbol, d.Ofs)
			if _, isUndef := v.(values.Vundef); isUndef {
				return nil, fmt.Errorf("address of unknown global %q", d.Symbol)
			}
		case DSpace:
			ofs += d.Size()
			continue
		}
		if m, ok = m.Store(chunk, b, ofs, v); !ok {
			return nil, fmt.Errorf("cannot store %s at offset %d", chunk, ofs)
		}
		ofs += d.Size()
	}
	return m, nil
}
