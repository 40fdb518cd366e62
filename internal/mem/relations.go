package mem

import (
	"github.com/roach88/extcall/internal/values"
)

// Loc is a predicate over memory locations.
type Loc func(b values.Block, ofs int64) bool

// LocUnmapped holds on blocks that f does not map.
func LocUnmapped(f values.Meminj) Loc {
	return func(b values.Block, _ int64) bool {
		_, ok := f.Lookup(b)
		return !ok
	}
}

// LocOutOfReach holds on target locations that no nonempty source byte of m
// is mapped onto by f.
func LocOutOfReach(f values.Meminj, m *Mem) Loc {
	pre := make(map[values.Block][]values.Target)
	for _, b0 := range f.Domain() {
		t, _ := f.Lookup(b0)
		pre[t.B] = append(pre[t.B], values.Target{B: b0, Delta: t.Delta})
	}
	return func(b values.Block, ofs int64) bool {
		for _, src := range pre[b] {
			if m.Perm(src.B, ofs-src.Delta, Max, Nonempty) {
				return false
			}
		}
		return true
	}
}

// LocOutOfBounds holds where m has no permission at all.
func LocOutOfBounds(m *Mem) Loc {
	return func(b values.Block, ofs int64) bool {
		return !m.Perm(b, ofs, Max, Nonempty)
	}
}

// LocNotWritable holds where m can never be written.
func LocNotWritable(m *Mem) Loc {
	return func(b values.Block, ofs int64) bool {
		return !m.Perm(b, ofs, Max, Writable)
	}
}

// span is the smallest range covering the bounds of b in both memories.
func span(b values.Block, m1, m2 *Mem) (lo, hi int64) {
	lo1, hi1, ok1 := m1.Bounds(b)
	lo2, hi2, ok2 := m2.Bounds(b)
	switch {
	case ok1 && ok2:
		return min(lo1, lo2), max(hi1, hi2)
	case ok1:
		return lo1, hi1
	case ok2:
		return lo2, hi2
	default:
		return 0, 0
	}
}

// Extends holds when m2 has the same blocks as m1, at least its
// permissions, and contents at least as defined wherever m1 is readable.
// Where m1 has any permission, m2 has no more than m1.
func Extends(m1, m2 *Mem) bool {
	if m1.Next() != m2.Next() {
		return false
	}
	for b := values.Block(1); b < m1.Next(); b++ {
		lo, hi := span(b, m1, m2)
		for ofs := lo; ofs < hi; ofs++ {
			live := m1.Perm(b, ofs, Max, Nonempty)
			for _, k := range PermKinds {
				p1, p2 := m1.PermAt(b, ofs, k), m2.PermAt(b, ofs, k)
				if p1 > p2 || (live && p2 > p1) {
					return false
				}
			}
			if m1.Perm(b, ofs, Cur, Readable) &&
				!MemvalLessdef(m1.Contents(b, ofs), m2.Contents(b, ofs)) {
				return false
			}
		}
	}
	return true
}

// Inject holds when f embeds m1 into m2.
func Inject(f values.Meminj, m1, m2 *Mem) bool {
	type cell struct {
		b   values.Block
		ofs int64
	}
	owner := make(map[cell]values.Block)
	for _, b1 := range f.Domain() {
		t, _ := f.Lookup(b1)
		if !m1.Valid(b1) || !m2.Valid(t.B) || t.Delta < 0 {
			return false
		}
		lo, hi, _ := m1.Bounds(b1)
		run, longest := int64(0), int64(0)
		for ofs := lo; ofs < hi; ofs++ {
			live := m1.Perm(b1, ofs, Max, Nonempty)
			if live {
				run++
				longest = max(longest, run)
			} else {
				run = 0
			}
			for _, k := range PermKinds {
				p1, p2 := m1.PermAt(b1, ofs, k), m2.PermAt(t.B, ofs+t.Delta, k)
				if p1 > p2 || (live && p2 > p1) {
					return false
				}
			}
			if m1.Perm(b1, ofs, Cur, Readable) &&
				!MemvalInject(f, m1.Contents(b1, ofs), m2.Contents(t.B, ofs+t.Delta)) {
				return false
			}
			if live {
				c := cell{t.B, ofs + t.Delta}
				if other, taken := owner[c]; taken && other != b1 {
					return false
				}
				owner[c] = b1
			}
		}
		for _, size := range []int64{8, 4, 2} {
			if longest >= size && t.Delta%size != 0 {
				return false
			}
		}
	}
	return true
}

// UnchangedOn holds when m2 agrees with m1 on permissions and readable
// contents at every location of a block valid in m1 satisfying p, and m2
// has at least the blocks of m1.
func UnchangedOn(p Loc, m1, m2 *Mem) bool {
	if m2.Next() < m1.Next() {
		return false
	}
	for b := values.Block(1); b < m1.Next(); b++ {
		lo, hi := span(b, m1, m2)
		for ofs := lo; ofs < hi; ofs++ {
			if !p(b, ofs) {
				continue
			}
			for _, k := range PermKinds {
				if m1.PermAt(b, ofs, k) != m2.PermAt(b, ofs, k) {
					return false
				}
			}
			if m1.Perm(b, ofs, Cur, Readable) &&
				!MemvalEqual(m1.Contents(b, ofs), m2.Contents(b, ofs)) {
				return false
			}
		}
	}
	return true
}
