package values

import (
	"fmt"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/floats"
)

// Block identifies a memory block. Block 0 is never allocated.
type Block uint64

// Val is a sealed interface over runtime values.
// Only Vundef, Vint, Vlong, Vfloat, Vsingle and Vptr implement it.
type Val interface {
	isVal()
	fmt.Stringer
}

// Vundef is the undefined value. It is less defined than every value.
type Vundef struct{}

// Vint is a 32-bit integer.
type Vint int32

// Vlong is a 64-bit integer.
type Vlong int64

// Vfloat is a double-precision float.
type Vfloat float64

// Vsingle is a single-precision float.
type Vsingle float32

// Vptr is a pointer: a block and a byte offset inside it.
type Vptr struct {
	B   Block
	Ofs int64
}

func (Vundef) isVal()  {}
func (Vint) isVal()    {}
func (Vlong) isVal()   {}
func (Vfloat) isVal()  {}
func (Vsingle) isVal() {}
func (Vptr) isVal()    {}

func (Vundef) String() string    { return "undef" }
func (v Vint) String() string    { return fmt.Sprintf("int(%d)", int32(v)) }
func (v Vlong) String() string   { return fmt.Sprintf("long(%d)", int64(v)) }
func (v Vfloat) String() string  { return fmt.Sprintf("float(%v)", float64(v)) }
func (v Vsingle) String() string { return fmt.Sprintf("single(%v)", float32(v)) }
func (v Vptr) String() string    { return fmt.Sprintf("ptr(b%d%+d)", v.B, v.Ofs) }

// Undef is the shared undefined value.
var Undef Val = Vundef{}

// Nullptr is the null pointer of the 64-bit target.
var Nullptr Val = Vlong(0)

// Equal is structural equality; floats are compared by bits.
func Equal(a, b Val) bool {
	switch a := a.(type) {
	case Vundef:
		_, ok := b.(Vundef)
		return ok
	case Vint:
		b, ok := b.(Vint)
		return ok && a == b
	case Vlong:
		b, ok := b.(Vlong)
		return ok && a == b
	case Vfloat:
		b, ok := b.(Vfloat)
		return ok && floats.Eq64(float64(a), float64(b))
	case Vsingle:
		b, ok := b.(Vsingle)
		return ok && floats.Eq32(float32(a), float32(b))
	case Vptr:
		b, ok := b.(Vptr)
		return ok && a == b
	default:
		return false
	}
}

// EqualList is pointwise Equal.
func EqualList(a, b []Val) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Lessdef holds when a is undefined or equal to b.
func Lessdef(a, b Val) bool {
	if _, ok := a.(Vundef); ok {
		return true
	}
	return Equal(a, b)
}

// LessdefList is pointwise Lessdef.
func LessdefList(a, b []Val) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Lessdef(a[i], b[i]) {
			return false
		}
	}
	return true
}

// HasType reports whether v inhabits t. Undef inhabits every type.
// Pointers and 64-bit integers share the same register class, so Tptr and
// Tlong accept both.
func HasType(v Val, t ast.Typ) bool {
	switch v.(type) {
	case Vundef:
		return true
	case Vint:
		return t == ast.Tint || t == ast.Tany32 || t == ast.Tany64
	case Vlong:
		return t == ast.Tlong || t == ast.Tptr || t == ast.Tany64
	case Vfloat:
		return t == ast.Tfloat || t == ast.Tany64
	case Vsingle:
		return t == ast.Tsingle || t == ast.Tany32 || t == ast.Tany64
	case Vptr:
		return t == ast.Tptr || t == ast.Tlong || t == ast.Tany64
	default:
		return false
	}
}

// HasRetType is HasType extended with Tvoid, which accepts anything.
func HasRetType(v Val, t ast.Typ) bool {
	return t == ast.Tvoid || HasType(v, t)
}

// HasTypeList checks every value against the matching type.
func HasTypeList(vs []Val, ts []ast.Typ) bool {
	if len(vs) != len(ts) {
		return false
	}
	for i := range vs {
		if !HasType(vs[i], ts[i]) {
			return false
		}
	}
	return true
}

// LoadResult normalizes v to what a load of the same chunk would return:
// small integers are sign- or zero-extended and ill-typed values become
// Undef.
func LoadResult(c ast.Chunk, v Val) Val {
	switch c {
	case ast.Mint8signed:
		if n, ok := v.(Vint); ok {
			return Vint(int8(n))
		}
	case ast.Mint8unsigned:
		if n, ok := v.(Vint); ok {
			return Vint(uint8(n))
		}
	case ast.Mint16signed:
		if n, ok := v.(Vint); ok {
			return Vint(int16(n))
		}
	case ast.Mint16unsigned:
		if n, ok := v.(Vint); ok {
			return Vint(uint16(n))
		}
	case ast.Mint32:
		if n, ok := v.(Vint); ok {
			return n
		}
	case ast.Mint64:
		switch v := v.(type) {
		case Vlong, Vptr:
			return v
		}
	case ast.Mfloat32:
		if f, ok := v.(Vsingle); ok {
			return f
		}
	case ast.Mfloat64:
		if f, ok := v.(Vfloat); ok {
			return f
		}
	case ast.Many32:
		switch v := v.(type) {
		case Vint, Vsingle:
			return v
		}
	case ast.Many64:
		return v
	}
	return Undef
}

// OffsetPtr adds delta to a pointer's offset; other values become Undef.
func OffsetPtr(v Val, delta int64) Val {
	if p, ok := v.(Vptr); ok {
		return Vptr{B: p.B, Ofs: p.Ofs + delta}
	}
	return Undef
}

// LongOfWords builds a 64-bit integer from its high and low halves.
func LongOfWords(hi, lo Val) Val {
	h, ok1 := hi.(Vint)
	l, ok2 := lo.(Vint)
	if !ok1 || !ok2 {
		return Undef
	}
	return Vlong(int64(uint64(uint32(h))<<32 | uint64(uint32(l))))
}

// AddL is 64-bit addition, with pointer arithmetic on either side.
func AddL(a, b Val) Val {
	switch a := a.(type) {
	case Vlong:
		switch b := b.(type) {
		case Vlong:
			return a + b
		case Vptr:
			return Vptr{B: b.B, Ofs: b.Ofs + int64(a)}
		}
	case Vptr:
		if b, ok := b.(Vlong); ok {
			return Vptr{B: a.B, Ofs: a.Ofs + int64(b)}
		}
	}
	return Undef
}
