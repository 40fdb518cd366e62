// Package ir provides the canonical record format for stored runs.
//
// Events, runs and violations are written as constrained JSON values
// (strings, integers, booleans, arrays and objects) and hashed over their
// RFC 8785 canonical encoding. ir imports nothing internal.
//
// Floats never appear in records: floating-point eventvals are stored as
// the hexadecimal image of their bits, which keeps NaN payloads and signed
// zeros exact.
package ir
