package testutil

// FixedRunID names every run the same.
//
// Scenario runs use it so the same scenario stores byte-identical events
// (event IDs hash the run ID) and golden snapshots stay stable.
//
// Unlike engine.FixedGenerator, which hands out a list of IDs once each,
// FixedRunID never runs out.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// DefaultRunID is used when a scenario does not name its run.
const DefaultRunID = "test-run-default"

// NewFixedRunID creates a generator returning id, or DefaultRunID when id
// is empty.
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
