package harness

import (
	"github.com/roach88/extcall/internal/engine"
	"github.com/roach88/extcall/internal/genv"
	"github.com/roach88/extcall/internal/ir"
)

// TraceEvent is one event of a scenario run, as read back from the store.
type TraceEvent struct {
	Step    int64       `json:"step"` // index of the call that emitted it
	Seq     int64       `json:"seq"`
	Kind    string      `json:"kind"`
	Event   string      `json:"event"` // printed form, e.g. "vload int32 &dev+0 = 7"
	Payload ir.IRObject `json:"payload"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success: the run ended as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the stored events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Results holds the printed result of every successful call.
	Results []string `json:"results"`

	// ErrorCode and ErrorStep describe the runtime error that stopped the
	// run, if any.
	ErrorCode string `json:"error_code,omitempty"`
	ErrorStep int    `json:"error_step,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run and Env are the engine state assertions inspect.
	Run *engine.Result  `json:"-"`
	Env *genv.Globalenv `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Results: []string{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTraceEvent appends a stored event to the trace.
func (r *Result) AddTraceEvent(rec ir.EventRecord, printed string) {
	r.Trace = append(r.Trace, TraceEvent{
		Step:    rec.Step,
		Seq:     rec.Seq,
		Kind:    rec.Kind,
		Event:   printed,
		Payload: rec.Payload,
	})
}
