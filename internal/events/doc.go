// Package events defines what an outside observer sees of a program run.
//
// An Event records one observable action: a system call, a volatile load or
// store, or an annotation. Arguments and results of events are Eventvals,
// which unlike runtime values never carry raw addresses: pointers only
// appear as references into public globals. Trace is a finite sequence of
// events built by concatenation; Traceinf is the lazy infinite counterpart,
// observed through finite prefixes.
//
// Match and OfVal/ToVal translate between values and eventvals against a
// symbol environment. MatchTraces decides when two single-step traces only
// differ in what the environment answered.
package events
