// Package ast holds the static vocabulary shared by every other package:
// semantic types, memory chunks, calling conventions, signatures and the
// descriptors of external functions.
//
// This package contains type definitions only and imports nothing internal.
// The target model is 64-bit: pointers occupy eight bytes and Tptr values are
// stored with the Mint64 chunk.
package ast
