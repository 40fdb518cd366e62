package ir

// Run is a stored execution: a scenario, an engine run or a conformance
// check.
type Run struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Seed          int64  `json:"seed"`
	Seq           int64  `json:"seq"` // Logical clock at creation
	EngineVersion string `json:"engine_version"`
}

// EventRecord is one event of a stored trace.
type EventRecord struct {
	ID      string   `json:"id"` // Content-addressed, see EventID
	RunID   string   `json:"run_id"`
	Step    int64    `json:"step"` // Index of the call that emitted it
	Seq     int64    `json:"seq"`
	Kind    string   `json:"kind"` // "syscall", "vload", "vstore", "annot"
	Payload IRObject `json:"payload"`
}

// ViolationRecord is a failed contract check.
type ViolationRecord struct {
	RunID    string `json:"run_id"`
	Seq      int64  `json:"seq"`
	Op       string `json:"op"`
	Property string `json:"property"`
	Message  string `json:"message"`
}
