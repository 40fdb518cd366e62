package genv

import (
	"slices"

	"github.com/roach88/extcall/internal/values"
)

// Env answers the symbol queries external operations depend on.
type Env interface {
	// FindSymbol returns the block allocated for the named global.
	FindSymbol(id string) (values.Block, bool)
	// InvertSymbol returns the global a block was allocated for.
	InvertSymbol(b values.Block) (string, bool)
	// IsPublic reports whether the global may appear in events.
	IsPublic(id string) bool
	// IsVolatile reports whether accesses to b are observable.
	IsVolatile(b values.Block) bool
	// Symbols lists the known globals in block order.
	Symbols() []string
}

// SymbolAddress is the pointer ofs bytes into the named global, or Undef.
func SymbolAddress(e Env, id string, ofs int64) values.Val {
	b, ok := e.FindSymbol(id)
	if !ok {
		return values.Undef
	}
	return values.Vptr{B: b, Ofs: ofs}
}

// Table is a snapshot of the Env queries with nothing else attached.
type Table struct {
	blocks   map[string]values.Block
	names    map[values.Block]string
	public   map[string]bool
	volatile map[values.Block]bool
	order    []string
}

// Snapshot copies every query answer of e into a Table.
func Snapshot(e Env) *Table {
	t := &Table{
		blocks:   make(map[string]values.Block),
		names:    make(map[values.Block]string),
		public:   make(map[string]bool),
		volatile: make(map[values.Block]bool),
	}
	for _, id := range e.Symbols() {
		b, ok := e.FindSymbol(id)
		if !ok {
			continue
		}
		t.order = append(t.order, id)
		t.blocks[id] = b
		t.names[b] = id
		t.public[id] = e.IsPublic(id)
		t.volatile[b] = e.IsVolatile(b)
	}
	return t
}

func (t *Table) FindSymbol(id string) (values.Block, bool) {
	b, ok := t.blocks[id]
	return b, ok
}

func (t *Table) InvertSymbol(b values.Block) (string, bool) {
	id, ok := t.names[b]
	return id, ok
}

func (t *Table) IsPublic(id string) bool        { return t.public[id] }
func (t *Table) IsVolatile(b values.Block) bool { return t.volatile[b] }
func (t *Table) Symbols() []string              { return slices.Clone(t.order) }

func symbolUnion(a, b Env) []string {
	ids := append(a.Symbols(), b.Symbols()...)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Equivalent holds when a and b agree on FindSymbol, IsPublic and
// IsVolatile for every symbol either of them knows.
func Equivalent(a, b Env) bool {
	for _, id := range symbolUnion(a, b) {
		ba, oka := a.FindSymbol(id)
		bb, okb := b.FindSymbol(id)
		if oka != okb || ba != bb || a.IsPublic(id) != b.IsPublic(id) {
			return false
		}
		if oka && a.IsVolatile(ba) != b.IsVolatile(bb) {
			return false
		}
	}
	return true
}

// SymbolsInject holds when f relates the globals of ge1 and ge2:
// visibility agrees, mapped symbol blocks move with delta 0 onto the same
// symbol, every public symbol is mapped, and mapped blocks keep their
// volatility.
func SymbolsInject(f values.Meminj, ge1, ge2 Env) bool {
	for _, id := range symbolUnion(ge1, ge2) {
		if ge1.IsPublic(id) != ge2.IsPublic(id) {
			return false
		}
		b1, ok := ge1.FindSymbol(id)
		if !ok {
			continue
		}
		t, mapped := f.Lookup(b1)
		if ge1.IsPublic(id) && !mapped {
			return false
		}
		if mapped {
			b2, ok := ge2.FindSymbol(id)
			if t.Delta != 0 || !ok || b2 != t.B {
				return false
			}
		}
	}
	for _, b1 := range f.Domain() {
		t, _ := f.Lookup(b1)
		if ge1.IsVolatile(b1) != ge2.IsVolatile(t.B) {
			return false
		}
	}
	return true
}
