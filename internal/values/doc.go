// Package values defines the runtime values manipulated by compiled programs
// and the two refinement relations the contract is stated with: Lessdef
// (definedness) and injection through a block renaming (Meminj).
//
// Values are immutable. Floating-point values are compared by bit pattern.
package values
