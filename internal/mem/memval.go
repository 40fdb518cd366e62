package mem

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/extcall/internal/ast"
	"github.com/roach88/extcall/internal/floats"
	"github.com/roach88/extcall/internal/values"
)

// MemVal is the content of one byte of memory.
type MemVal interface {
	isMemVal()
	fmt.Stringer
}

// MUndef is an uninitialized byte.
type MUndef struct{}

// Byte is a concrete byte.
type Byte uint8

// Fragment is byte N of the Q-byte in-memory image of an abstract value.
type Fragment struct {
	V values.Val
	Q uint8
	N uint8
}

func (MUndef) isMemVal()   {}
func (Byte) isMemVal()     {}
func (Fragment) isMemVal() {}

func (MUndef) String() string     { return "?" }
func (b Byte) String() string     { return fmt.Sprintf("%02x", uint8(b)) }
func (f Fragment) String() string { return fmt.Sprintf("%v#%d/%d", f.V, f.N, f.Q) }

// MemvalEqual is structural equality on byte contents.
func MemvalEqual(a, b MemVal) bool {
	switch a := a.(type) {
	case MUndef:
		_, ok := b.(MUndef)
		return ok
	case Byte:
		b, ok := b.(Byte)
		return ok && a == b
	case Fragment:
		b, ok := b.(Fragment)
		return ok && a.Q == b.Q && a.N == b.N && values.Equal(a.V, b.V)
	default:
		return false
	}
}

// MemvalInject lifts value injection to bytes. Undefined bytes inject into
// anything.
func MemvalInject(f values.Meminj, a, b MemVal) bool {
	switch a := a.(type) {
	case MUndef:
		return true
	case Byte:
		b, ok := b.(Byte)
		return ok && a == b
	case Fragment:
		b, ok := b.(Fragment)
		return ok && a.Q == b.Q && a.N == b.N && values.Inject(f, a.V, b.V)
	default:
		return false
	}
}

// MemvalLessdef is MemvalInject under the identity: fragments may only become
// more defined.
func MemvalLessdef(a, b MemVal) bool {
	switch a := a.(type) {
	case MUndef:
		return true
	case Byte:
		b, ok := b.(Byte)
		return ok && a == b
	case Fragment:
		b, ok := b.(Fragment)
		return ok && a.Q == b.Q && a.N == b.N && values.Lessdef(a.V, b.V)
	default:
		return false
	}
}

func undefs(n int64) []MemVal {
	out := make([]MemVal, n)
	for i := range out {
		out[i] = MUndef{}
	}
	return out
}

func bytesOf(b []byte) []MemVal {
	out := make([]MemVal, len(b))
	for i, x := range b {
		out[i] = Byte(x)
	}
	return out
}

func fragments(v values.Val, q uint8) []MemVal {
	out := make([]MemVal, q)
	for i := range out {
		out[i] = Fragment{V: v, Q: q, N: uint8(i)}
	}
	return out
}

// Encode returns the little-endian in-memory image of v stored with chunk c.
// Values that do not fit the chunk encode as undefined bytes.
func Encode(c ast.Chunk, v values.Val) []MemVal {
	size := c.Size()
	var buf [8]byte
	switch c {
	case ast.Mint8signed, ast.Mint8unsigned:
		if n, ok := v.(values.Vint); ok {
			return bytesOf([]byte{byte(n)})
		}
	case ast.Mint16signed, ast.Mint16unsigned:
		if n, ok := v.(values.Vint); ok {
			binary.LittleEndian.PutUint16(buf[:], uint16(n))
			return bytesOf(buf[:2])
		}
	case ast.Mint32:
		if n, ok := v.(values.Vint); ok {
			binary.LittleEndian.PutUint32(buf[:], uint32(n))
			return bytesOf(buf[:4])
		}
	case ast.Mint64:
		switch v := v.(type) {
		case values.Vlong:
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			return bytesOf(buf[:8])
		case values.Vptr:
			return fragments(v, 8)
		}
	case ast.Mfloat32:
		if f, ok := v.(values.Vsingle); ok {
			binary.LittleEndian.PutUint32(buf[:], floats.ToBits32(float32(f)))
			return bytesOf(buf[:4])
		}
	case ast.Mfloat64:
		if f, ok := v.(values.Vfloat); ok {
			binary.LittleEndian.PutUint64(buf[:], floats.ToBits64(float64(f)))
			return bytesOf(buf[:8])
		}
	case ast.Many32:
		return fragments(v, 4)
	case ast.Many64:
		return fragments(v, 8)
	}
	return undefs(size)
}

func projBytes(vl []MemVal) ([]byte, bool) {
	out := make([]byte, len(vl))
	for i, mv := range vl {
		b, ok := mv.(Byte)
		if !ok {
			return nil, false
		}
		out[i] = byte(b)
	}
	return out, true
}

// projValue recovers the value whose q-byte image is exactly vl.
func projValue(q uint8, vl []MemVal) values.Val {
	if len(vl) != int(q) {
		return values.Undef
	}
	first, ok := vl[0].(Fragment)
	if !ok {
		return values.Undef
	}
	for i, mv := range vl {
		f, ok := mv.(Fragment)
		if !ok || f.Q != q || f.N != uint8(i) || !values.Equal(f.V, first.V) {
			return values.Undef
		}
	}
	return first.V
}

// Decode is the inverse of Encode: it reads back a value of chunk c.
func Decode(c ast.Chunk, vl []MemVal) values.Val {
	if bs, ok := projBytes(vl); ok {
		switch c {
		case ast.Mint8signed:
			return values.Vint(int8(bs[0]))
		case ast.Mint8unsigned:
			return values.Vint(bs[0])
		case ast.Mint16signed:
			return values.Vint(int16(binary.LittleEndian.Uint16(bs)))
		case ast.Mint16unsigned:
			return values.Vint(binary.LittleEndian.Uint16(bs))
		case ast.Mint32:
			return values.Vint(int32(binary.LittleEndian.Uint32(bs)))
		case ast.Mint64:
			return values.Vlong(int64(binary.LittleEndian.Uint64(bs)))
		case ast.Mfloat32:
			return values.Vsingle(floats.OfBits32(binary.LittleEndian.Uint32(bs)))
		case ast.Mfloat64:
			return values.Vfloat(floats.OfBits64(binary.LittleEndian.Uint64(bs)))
		default:
			return values.Undef
		}
	}
	switch c {
	case ast.Many32:
		return values.LoadResult(c, projValue(4, vl))
	case ast.Mint64, ast.Many64:
		return values.LoadResult(c, projValue(8, vl))
	default:
		return values.Undef
	}
}
