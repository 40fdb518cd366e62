package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/extcall/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id,omitempty"`
	Trace        []TraceEvent `json:"trace"`
	Results      []string     `json:"results"`
	ErrorCode    string       `json:"error_code,omitempty"`
	ErrorStep    int          `json:"error_step,omitempty"`
}

// NewTraceSnapshot builds the snapshot of a scenario result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	s := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Results:      result.Results,
		ErrorCode:    result.ErrorCode,
		ErrorStep:    result.ErrorStep,
	}
	if result.Run != nil {
		s.RunID = result.Run.RunID
	}
	return s
}

// toCanonical converts a TraceSnapshot to an IR object for canonical JSON
// serialization. Payloads are already IR.
func (s *TraceSnapshot) toCanonical() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = ir.IRObject{
			"step":    ir.IRInt(event.Step),
			"seq":     ir.IRInt(event.Seq),
			"kind":    ir.IRString(event.Kind),
			"event":   ir.IRString(event.Event),
			"payload": event.Payload,
		}
	}

	results := make(ir.IRArray, len(s.Results))
	for i, r := range s.Results {
		results[i] = ir.IRString(r)
	}

	obj := ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         trace,
		"results":       results,
	}
	if s.RunID != "" {
		obj["run_id"] = ir.IRString(s.RunID)
	}
	if s.ErrorCode != "" {
		obj["error"] = ir.IRObject{
			"code": ir.IRString(s.ErrorCode),
			"step": ir.IRInt(s.ErrorStep),
		}
	}
	return obj
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	// Compare with golden file using goldie
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
