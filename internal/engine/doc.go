// Package engine executes sequences of external calls.
//
// An Engine holds a global environment, the hooks for opaque externals and
// an oracle standing for the outside world. Run threads one memory through
// a list of calls: each call's arguments are evaluated by the builtin
// argument evaluator against the run's stack frame and local bindings,
// dispatched to the semantics of its external function, and its trace is
// appended to the run's trace.
//
// A call with no outcome stops the run with a RuntimeError. Nothing of the
// failed call is kept: the memory and trace stay those of the last
// successful call.
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Runs and events are stamped with a monotonic seq counter from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Execution
// Calls run in order, on one goroutine, and every oracle is deterministic:
// the same calls, memory and oracle give byte-identical stored traces.
package engine
