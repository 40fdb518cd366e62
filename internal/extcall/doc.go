// Package extcall gives semantics to external operations and checks them
// against the external-call contract.
//
// A Sem relates a symbol environment, argument values and a memory to the
// outcomes of a call: the trace it emits, its result and the memory after.
// Where the outside world picks the result (volatile loads, system calls)
// the relation has many outcomes; Step explores one of them, selected by an
// Oracle, and Admits decides whether a given outcome belongs to the
// relation by replaying its trace.
//
// The catalog (VolatileLoad, VolatileStore, Malloc, Free, Memcpy,
// Annotation, AnnotationValue, Debug) implements the built-in operations.
// Everything else is delegated to host-supplied Hooks. Dispatch maps an
// ast.ExternalFunction to its Sem.
//
// The Check* functions are executable forms of the ten contract
// properties. Each returns a *Violation naming the property when an
// instance breaks it, and nil when it holds or its precondition does not.
package extcall
