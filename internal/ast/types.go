package ast

import (
	"fmt"
	"strings"
)

// Typ is a semantic type of a value, argument or result.
type Typ uint8

const (
	// Tvoid is only meaningful as a result type: the call returns nothing.
	Tvoid Typ = iota
	Tint
	Tlong
	Tfloat
	Tsingle
	Tptr
	Tany32
	Tany64
)

var typNames = [...]string{
	Tvoid:   "void",
	Tint:    "int",
	Tlong:   "long",
	Tfloat:  "float",
	Tsingle: "single",
	Tptr:    "ptr",
	Tany32:  "any32",
	Tany64:  "any64",
}

func (t Typ) String() string {
	if int(t) < len(typNames) {
		return typNames[t]
	}
	return fmt.Sprintf("Typ(%d)", uint8(t))
}

// Underlying resolves Tptr to the integer type of pointer size.
func (t Typ) Underlying() Typ {
	if t == Tptr {
		return Tlong
	}
	return t
}

// Admits reports whether a value of type u can be used at type t: both
// have the same underlying type, or t is an any type wide enough for u.
func (t Typ) Admits(u Typ) bool {
	if u == Tvoid {
		return false
	}
	switch t {
	case Tvoid:
		return false
	case Tany64:
		return true
	case Tany32:
		return u == Tint || u == Tsingle
	}
	return t.Underlying() == u.Underlying()
}

// ParseTyp is the inverse of Typ.String.
func ParseTyp(s string) (Typ, error) {
	for i, n := range typNames {
		if n == s {
			return Typ(i), nil
		}
	}
	return Tvoid, fmt.Errorf("unknown type %q", s)
}

// Chunk describes the size, signedness and type of a memory access.
type Chunk uint8

const (
	Mint8signed Chunk = iota + 1
	Mint8unsigned
	Mint16signed
	Mint16unsigned
	Mint32
	Mint64
	Mfloat32
	Mfloat64
	Many32
	Many64
)

// Mptr is the chunk used for pointer-sized accesses.
const Mptr = Mint64

// PtrSize is the size in bytes of a pointer and of the malloc header.
const PtrSize = 8

// Chunks lists every chunk, in declaration order.
var Chunks = []Chunk{
	Mint8signed, Mint8unsigned, Mint16signed, Mint16unsigned,
	Mint32, Mint64, Mfloat32, Mfloat64, Many32, Many64,
}

var chunkNames = map[Chunk]string{
	Mint8signed:    "int8s",
	Mint8unsigned:  "int8u",
	Mint16signed:   "int16s",
	Mint16unsigned: "int16u",
	Mint32:         "int32",
	Mint64:         "int64",
	Mfloat32:       "float32",
	Mfloat64:       "float64",
	Many32:         "any32",
	Many64:         "any64",
}

func (c Chunk) String() string {
	if n, ok := chunkNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Chunk(%d)", uint8(c))
}

// ParseChunk is the inverse of Chunk.String.
func ParseChunk(s string) (Chunk, error) {
	for c, n := range chunkNames {
		if n == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown chunk %q", s)
}

// Size is the number of bytes the chunk covers.
func (c Chunk) Size() int64 {
	switch c {
	case Mint8signed, Mint8unsigned:
		return 1
	case Mint16signed, Mint16unsigned:
		return 2
	case Mint32, Mfloat32, Many32:
		return 4
	case Mint64, Mfloat64, Many64:
		return 8
	default:
		panic(fmt.Sprintf("size of invalid chunk %d", c))
	}
}

// Align is the required alignment of the chunk. It equals its size.
func (c Chunk) Align() int64 { return c.Size() }

// Type is the semantic type of values loaded with the chunk.
func (c Chunk) Type() Typ {
	switch c {
	case Mint8signed, Mint8unsigned, Mint16signed, Mint16unsigned, Mint32:
		return Tint
	case Mint64:
		return Tlong
	case Mfloat32:
		return Tsingle
	case Mfloat64:
		return Tfloat
	case Many32:
		return Tany32
	case Many64:
		return Tany64
	default:
		panic(fmt.Sprintf("type of invalid chunk %d", c))
	}
}

// CallConv is the calling-convention tag of a signature.
type CallConv struct {
	Vararg    bool `json:"vararg,omitempty"`
	Unproto   bool `json:"unproto,omitempty"`
	StructRet bool `json:"struct_ret,omitempty"`
}

// CCDefault is the default calling convention.
var CCDefault = CallConv{}

// Signature is an ordered list of argument types, a result type (Tvoid for
// none) and a calling convention.
type Signature struct {
	Args []Typ    `json:"args"`
	Res  Typ      `json:"res"`
	CC   CallConv `json:"cc"`
}

// Sig builds a default-convention signature.
func Sig(res Typ, args ...Typ) Signature {
	return Signature{Args: args, Res: res, CC: CCDefault}
}

// Equal reports structural equality.
func (s Signature) Equal(o Signature) bool {
	if s.Res != o.Res || s.CC != o.CC || len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(parts, ", "), s.Res)
}
