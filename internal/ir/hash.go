package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
const (
	DomainEvent    = "extcall/event/v1"
	DomainTrace    = "extcall/trace/v1"
	DomainScenario = "extcall/scenario/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID identifies the event recorded at position seq of a run. The same
// event at a different position or in a different run gets a different ID.
func EventID(runID string, step, seq int64, payload IRObject) (string, error) {
	obj := IRObject{
		"run_id":  IRString(runID),
		"step":    IRInt(step),
		"seq":     IRInt(seq),
		"payload": payload,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// TraceID identifies a trace by its event payloads only, so identical
// traces from different runs share an ID.
func TraceID(payloads []IRObject) (string, error) {
	arr := make(IRArray, len(payloads))
	for i, p := range payloads {
		arr[i] = p
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("TraceID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// ScenarioHash identifies a scenario definition.
func ScenarioHash(def IRObject) (string, error) {
	canonical, err := MarshalCanonical(def)
	if err != nil {
		return "", fmt.Errorf("ScenarioHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScenario, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(runID string, step, seq int64, payload IRObject) string {
	id, err := EventID(runID, step, seq, payload)
	if err != nil {
		panic(err)
	}
	return id
}
