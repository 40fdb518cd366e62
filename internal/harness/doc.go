// Package harness checks external-call semantics two ways.
//
// CheckConformance is the property harness: for every operation it
// generates random inputs, runs the operation's semantics and checks the
// ten properties every external call must satisfy (typing, env
// invariance, valid blocks, max perms, readonly, extends, inject, trace
// length, receptiveness, determinism). Violations carry the operation,
// the property and a printed witness.
//
// Run executes a scenario: a YAML list of calls against a CUE
// environment, followed by assertions on the resulting trace, results,
// locals and memory.
//
// # Scenario Format
//
//	name: free_block
//	description: "free releases the block and its header"
//	env: env.cue
//	calls:
//	  - op: malloc
//	    args: ["i64:16"]
//	    dest: p
//	  - op: vstore
//	    chunk: int32
//	    args: ["&dev", "i32:7"]
//	  - op: free
//	    args: ["$p"]
//	answers: ["i32:42"]
//	assertions:
//	  - type: no_access
//	    addr: "$p-8"
//	    size: 24
//	  - type: trace_contains
//	    event: "vstore int32 &dev+0 := 7"
//
// Arguments use the builtin argument syntax described at ParseArg.
// Answers feed the oracle in order; unanswered queries fall back to the
// default oracle.
//
// # Assertion Types
//
//   - trace_contains: an event prints exactly as given
//   - trace_count: exactly N events of a kind
//   - trace_length: exactly N events
//   - result: the result of the N-th successful call
//   - local: the value bound to a local
//   - memory: the value loaded at an address, or "none"
//   - no_access: a range without any permission
//   - replay_matches: a rerun with other answers gives a matching trace
//
// # Deterministic Testing
//
// Scenarios run with a fixed run ID (scenario.run_id or
// testutil.DefaultRunID), a fresh engine clock and an in-memory SQLite
// store, so the stored trace is byte-identical across runs and can be
// compared with golden files.
package harness
