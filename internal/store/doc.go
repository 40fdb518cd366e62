// Package store provides SQLite-backed durable storage for runs, their
// traces and the contract violations found while checking them.
//
// # Tables
//
//   - runs: one row per run, stamped with the logical clock
//   - events: one row per trace event, payload as canonical JSON
//   - violations: failed contract checks, keyed by (run_id, seq)
//
// # Ordering
//
// All ordering uses the logical seq column, never timestamps. Every query
// over events or violations ends in
//
//	ORDER BY seq ASC, id COLLATE BINARY ASC
//
// (or the equivalent for tables without an id) so reads are identical
// across processes.
//
// Event IDs are content-addressed via ir.EventID: writing the same event
// twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
