package mem

import (
	"fmt"

	"github.com/benbjohnson/immutable"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/values"
)

// Perm is an access permission. Permissions are totally ordered:
// Freeable > Writable > Readable > Nonempty > None.
type Perm uint8

const (
	None Perm = iota
	Nonempty
	Readable
	Writable
	Freeable
)

var permNames = [...]string{"none", "nonempty", "readable", "writable", "freeable"}

func (p Perm) String() string {
	if int(p) < len(permNames) {
		return permNames[p]
	}
	return fmt.Sprintf("Perm(%d)", uint8(p))
}

// PermKind selects the current or the maximal permission of a byte.
type PermKind uint8

const (
	Cur PermKind = iota
	Max
)

// PermKinds lists both kinds.
var PermKinds = [...]PermKind{Cur, Max}

type block struct {
	lo, hi   int64
	contents []MemVal
	perms    [2][]Perm
}

func (bl *block) index(ofs int64) (int, bool) {
	if ofs < bl.lo || ofs >= bl.hi {
		return 0, false
	}
	return int(ofs - bl.lo), true
}

func (bl *block) clone() *block {
	nb := &block{lo: bl.lo, hi: bl.hi}
	nb.contents = append([]MemVal(nil), bl.contents...)
	nb.perms[Cur] = append([]Perm(nil), bl.perms[Cur]...)
	nb.perms[Max] = append([]Perm(nil), bl.perms[Max]...)
	return nb
}

// Mem is an immutable memory state.
type Mem struct {
	blocks *immutable.Map[values.Block, *block]
	next   values.Block
}

// Empty returns the memory with no blocks.
func Empty() *Mem {
	return &Mem{
		blocks: immutable.NewMap[values.Block, *block](values.BlockHasher),
		next:   1,
	}
}

// Next is the first block that has not been allocated yet.
func (m *Mem) Next() values.Block { return m.next }

// Valid reports whether b has been allocated, freed or not.
func (m *Mem) Valid(b values.Block) bool { return b >= 1 && b < m.next }

func (m *Mem) block(b values.Block) (*block, bool) {
	if !m.Valid(b) {
		return nil, false
	}
	return m.blocks.Get(b)
}

func (m *Mem) with(b values.Block, bl *block) *Mem {
	return &Mem{blocks: m.blocks.Set(b, bl), next: m.next}
}

// Bounds returns the allocation bounds [lo, hi) of b.
func (m *Mem) Bounds(b values.Block) (lo, hi int64, ok bool) {
	bl, ok := m.block(b)
	if !ok {
		return 0, 0, false
	}
	return bl.lo, bl.hi, true
}

// PermAt is the permission of kind k held on byte ofs of block b.
func (m *Mem) PermAt(b values.Block, ofs int64, k PermKind) Perm {
	bl, ok := m.block(b)
	if !ok {
		return None
	}
	i, ok := bl.index(ofs)
	if !ok {
		return None
	}
	return bl.perms[k][i]
}

// Perm reports whether byte ofs of b has at least permission p.
// Asking for None is meaningless and always answers false.
func (m *Mem) Perm(b values.Block, ofs int64, k PermKind, p Perm) bool {
	return p != None && m.PermAt(b, ofs, k) >= p
}

// RangePerm is Perm on every byte of [lo, hi). Empty ranges hold trivially.
func (m *Mem) RangePerm(b values.Block, lo, hi int64, k PermKind, p Perm) bool {
	for ofs := lo; ofs < hi; ofs++ {
		if !m.Perm(b, ofs, k, p) {
			return false
		}
	}
	return true
}

// Contents returns the byte stored at ofs in b; bytes outside any block are
// undefined.
func (m *Mem) Contents(b values.Block, ofs int64) MemVal {
	bl, ok := m.block(b)
	if !ok {
		return MUndef{}
	}
	i, ok := bl.index(ofs)
	if !ok {
		return MUndef{}
	}
	return bl.contents[i]
}

// ValidAccess holds when chunk c can access ofs in b with permission p.
func (m *Mem) ValidAccess(c ast.Chunk, b values.Block, ofs int64, p Perm) bool {
	return m.RangePerm(b, ofs, ofs+c.Size(), Cur, p) && ofs%c.Align() == 0
}

// Load reads a value of chunk c at ofs in b.
func (m *Mem) Load(c ast.Chunk, b values.Block, ofs int64) (values.Val, bool) {
	if !m.ValidAccess(c, b, ofs, Readable) {
		return nil, false
	}
	vl := make([]MemVal, c.Size())
	for i := range vl {
		vl[i] = m.Contents(b, ofs+int64(i))
	}
	return Decode(c, vl), true
}

// LoadV is Load through a pointer value.
func (m *Mem) LoadV(c ast.Chunk, addr values.Val) (values.Val, bool) {
	p, ok := addr.(values.Vptr)
	if !ok {
		return nil, false
	}
	return m.Load(c, p.B, p.Ofs)
}

// Store writes v with chunk c at ofs in b.
func (m *Mem) Store(c ast.Chunk, b values.Block, ofs int64, v values.Val) (*Mem, bool) {
	if !m.ValidAccess(c, b, ofs, Writable) {
		return nil, false
	}
	return m.setN(b, ofs, Encode(c, v)), true
}

// StoreV is Store through a pointer value.
func (m *Mem) StoreV(c ast.Chunk, addr values.Val, v values.Val) (*Mem, bool) {
	p, ok := addr.(values.Vptr)
	if !ok {
		return nil, false
	}
	return m.Store(c, p.B, p.Ofs, v)
}

// LoadBytes reads n raw bytes starting at ofs. n <= 0 yields no bytes.
func (m *Mem) LoadBytes(b values.Block, ofs, n int64) ([]MemVal, bool) {
	if n < 0 {
		n = 0
	}
	if !m.RangePerm(b, ofs, ofs+n, Cur, Readable) {
		return nil, false
	}
	out := make([]MemVal, n)
	for i := range out {
		out[i] = m.Contents(b, ofs+int64(i))
	}
	return out, true
}

// StoreBytes writes raw bytes starting at ofs.
func (m *Mem) StoreBytes(b values.Block, ofs int64, bytes []MemVal) (*Mem, bool) {
	if !m.RangePerm(b, ofs, ofs+int64(len(bytes)), Cur, Writable) {
		return nil, false
	}
	if len(bytes) == 0 {
		return m, true
	}
	return m.setN(b, ofs, bytes), true
}

func (m *Mem) setN(b values.Block, ofs int64, vl []MemVal) *Mem {
	bl, _ := m.block(b)
	nb := bl.clone()
	for i, mv := range vl {
		j, _ := nb.index(ofs + int64(i))
		nb.contents[j] = mv
	}
	return m.with(b, nb)
}

// Alloc creates a fresh block with bounds [lo, hi), undefined contents and
// Freeable permission everywhere.
func (m *Mem) Alloc(lo, hi int64) (*Mem, values.Block) {
	if hi < lo {
		hi = lo
	}
	n := hi - lo
	bl := &block{lo: lo, hi: hi, contents: undefs(n)}
	for _, k := range PermKinds {
		bl.perms[k] = make([]Perm, n)
		for i := range bl.perms[k] {
			bl.perms[k][i] = Freeable
		}
	}
	b := m.next
	return &Mem{blocks: m.blocks.Set(b, bl), next: b + 1}, b
}

// Free removes every permission on [lo, hi) of b. It needs Freeable
// permission on the whole range.
func (m *Mem) Free(b values.Block, lo, hi int64) (*Mem, bool) {
	if !m.RangePerm(b, lo, hi, Cur, Freeable) {
		return nil, false
	}
	if lo >= hi {
		return m, true
	}
	return m.setPerm(b, lo, hi, None), true
}

// DropPerm lowers both permissions of [lo, hi) to p. It needs Freeable
// permission on the whole range.
func (m *Mem) DropPerm(b values.Block, lo, hi int64, p Perm) (*Mem, bool) {
	if !m.RangePerm(b, lo, hi, Cur, Freeable) {
		return nil, false
	}
	if lo >= hi {
		return m, true
	}
	return m.setPerm(b, lo, hi, p), true
}

func (m *Mem) setPerm(b values.Block, lo, hi int64, p Perm) *Mem {
	bl, _ := m.block(b)
	nb := bl.clone()
	for ofs := lo; ofs < hi; ofs++ {
		i, _ := nb.index(ofs)
		nb.perms[Cur][i] = p
		nb.perms[Max][i] = p
	}
	return m.with(b, nb)
}

// Equal reports whether two memories are indistinguishable.
func Equal(m1, m2 *Mem) bool {
	if m1 == m2 {
		return true
	}
	if m1.next != m2.next {
		return false
	}
	for b := values.Block(1); b < m1.next; b++ {
		b1, _ := m1.block(b)
		b2, _ := m2.block(b)
		if b1 == b2 {
			continue
		}
		if b1.lo != b2.lo || b1.hi != b2.hi {
			return false
		}
		for i := range b1.contents {
			if !MemvalEqual(b1.contents[i], b2.contents[i]) ||
				b1.perms[Cur][i] != b2.perms[Cur][i] ||
				b1.perms[Max][i] != b2.perms[Max][i] {
				return false
			}
		}
	}
	return true
}
