package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/extcall/internal/events"
	"github.com/roach88/extcall/internal/ir"
)

// createTestStore creates a new on-disk store under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, seq int64) ir.Run {
	return ir.Run{
		ID:            id,
		Name:          "test-" + id,
		Seed:          1,
		Seq:           seq,
		EngineVersion: "0.1.0",
	}
}

// createTestEvent builds the record of ev as the engine would.
func createTestEvent(t *testing.T, runID string, step, seq int64, ev events.Event) ir.EventRecord {
	t.Helper()
	payload := events.Encode(ev)
	id, err := ir.EventID(runID, step, seq, payload)
	if err != nil {
		t.Fatalf("EventID() failed: %v", err)
	}
	return ir.EventRecord{
		ID:      id,
		RunID:   runID,
		Step:    step,
		Seq:     seq,
		Kind:    events.Kind(ev),
		Payload: payload,
	}
}
