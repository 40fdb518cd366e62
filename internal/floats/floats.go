// Package floats is the numeric collaborator of the semantics: bit-exact
// IEEE754 conversions and the handful of operations external builtins need.
//
// Values are compared by bit pattern, never with ==, so that NaN payloads and
// signed zeros survive round trips through memory and events.
package floats

import "math"

// OfBits64 reinterprets a 64-bit pattern as a double.
func OfBits64(b uint64) float64 { return math.Float64frombits(b) }

// ToBits64 returns the IEEE754 bit pattern of a double.
func ToBits64(f float64) uint64 { return math.Float64bits(f) }

// OfBits32 reinterprets a 32-bit pattern as a single.
func OfBits32(b uint32) float32 { return math.Float32frombits(b) }

// ToBits32 returns the IEEE754 bit pattern of a single.
func ToBits32(f float32) uint32 { return math.Float32bits(f) }

// Eq64 is bit equality on doubles.
func Eq64(a, b float64) bool { return ToBits64(a) == ToBits64(b) }

// Eq32 is bit equality on singles.
func Eq32(a, b float32) bool { return ToBits32(a) == ToBits32(b) }

// Abs clears the sign bit. Unlike math.Abs it is defined on the bit pattern,
// so NaN payloads are preserved.
func Abs(f float64) float64 { return OfBits64(ToBits64(f) &^ (1 << 63)) }

// Neg flips the sign bit.
func Neg(f float64) float64 { return OfBits64(ToBits64(f) ^ (1 << 63)) }

// Sqrt is the correctly rounded square root.
func Sqrt(f float64) float64 { return math.Sqrt(f) }

// Abs32 clears the sign bit of a single.
func Abs32(f float32) float32 { return OfBits32(ToBits32(f) &^ (1 << 31)) }
