// Package mem is the reference memory module consumed by the external-call
// semantics.
//
// A Mem is an immutable value: every operation that changes memory returns a
// new Mem and leaves its receiver valid. Blocks are kept in a persistent map
// and are copied on write, so composing calls never aliases mutable state.
//
// Memory is a set of blocks, each with fixed bounds chosen at allocation.
// Every byte carries a current and a maximal permission and a MemVal
// (undefined, a concrete byte, or a fragment of an abstract value such as a
// pointer). Blocks are never removed: freeing drops permissions, so validity
// (b < Next) only grows.
//
// The three relations of the contract, Extends, Inject and UnchangedOn, are
// decidable here because memories are finite; they are checked by walking
// every valid block within its bounds.
package mem
