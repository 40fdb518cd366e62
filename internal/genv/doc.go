// Package genv provides the symbol environment external operations are
// evaluated against.
//
// Env is the query surface: symbol lookup and its inverse, visibility and
// volatility. Globalenv is the concrete environment built from global
// declarations; it also knows how to lay those globals out in an initial
// memory. Table is a bare snapshot of the queries, used to check that
// semantics only depend on what Env exposes.
package genv
