package values

import (
	"github.com/benbjohnson/immutable"
)

// Target is the image of a block under an injection: the block it is
// embedded in and the offset of the embedding.
type Target struct {
	B     Block
	Delta int64
}

type blockHasher struct{}

func (blockHasher) Hash(b Block) uint32 {
	h := uint64(b) * 0x9E3779B97F4A7C15
	return uint32(h ^ (h >> 32))
}

func (blockHasher) Equal(a, b Block) bool { return a == b }

// BlockHasher hashes blocks for persistent maps keyed by Block.
var BlockHasher immutable.Hasher[Block] = blockHasher{}

// Meminj is a partial map from blocks to targets. It is persistent: Set
// returns a new map and leaves the receiver untouched, so a map handed out
// before growth stays valid. The zero value is the empty injection.
type Meminj struct {
	m   *immutable.Map[Block, Target]
	max Block
}

// EmptyInj returns the injection that maps nothing.
func EmptyInj() Meminj { return Meminj{} }

// IdentityInj maps every block below next to itself with delta 0.
func IdentityInj(next Block) Meminj {
	f := EmptyInj()
	for b := Block(1); b < next; b++ {
		f = f.Set(b, Target{B: b})
	}
	return f
}

// Lookup returns the image of b.
func (f Meminj) Lookup(b Block) (Target, bool) {
	if f.m == nil {
		return Target{}, false
	}
	return f.m.Get(b)
}

// Set returns f extended (or overridden) at b.
func (f Meminj) Set(b Block, t Target) Meminj {
	m := f.m
	if m == nil {
		m = immutable.NewMap[Block, Target](BlockHasher)
	}
	max := f.max
	if b > max {
		max = b
	}
	return Meminj{m: m.Set(b, t), max: max}
}

// Len is the number of mapped blocks.
func (f Meminj) Len() int {
	if f.m == nil {
		return 0
	}
	return f.m.Len()
}

// Domain returns the mapped blocks in increasing order.
func (f Meminj) Domain() []Block {
	var dom []Block
	for b := Block(1); b <= f.max; b++ {
		if _, ok := f.Lookup(b); ok {
			dom = append(dom, b)
		}
	}
	return dom
}

// Incr reports whether g agrees with f everywhere f is defined.
func Incr(f, g Meminj) bool {
	for _, b := range f.Domain() {
		t, _ := f.Lookup(b)
		u, ok := g.Lookup(b)
		if !ok || t != u {
			return false
		}
	}
	return true
}

// Inject is the value injection: scalars must be equal, pointers are
// relocated by f, and Undef injects into anything.
func Inject(f Meminj, a, b Val) bool {
	switch a := a.(type) {
	case Vundef:
		return true
	case Vptr:
		p, ok := b.(Vptr)
		if !ok {
			return false
		}
		t, ok := f.Lookup(a.B)
		return ok && p.B == t.B && p.Ofs == a.Ofs+t.Delta
	default:
		return Equal(a, b)
	}
}

// InjectList is pointwise Inject.
func InjectList(f Meminj, a, b []Val) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Inject(f, a[i], b[i]) {
			return false
		}
	}
	return true
}
