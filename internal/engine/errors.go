package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running calls.
//
// Runtime errors include:
//   - No outcome: the semantics of a call admits no result
//   - Quota exceeded: the run exceeds the max steps limit
//   - Unknown external: no semantics for the external function
//   - Bad arity: the argument count disagrees with the signature
//   - Bad argument: an argument expression could not be evaluated
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Step is the index of the failing call.
	Step int

	// Op names the external function of the failing call.
	Op string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNoOutcome indicates a call has no outcome.
	ErrCodeNoOutcome RuntimeErrorCode = "NO_OUTCOME"

	// ErrCodeQuotaExceeded indicates the run exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownExternal indicates an external function without semantics.
	ErrCodeUnknownExternal RuntimeErrorCode = "UNKNOWN_EXTERNAL"

	// ErrCodeBadArity indicates a call with the wrong number of arguments.
	ErrCodeBadArity RuntimeErrorCode = "BAD_ARITY"

	// ErrCodeBadArgument indicates an argument whose evaluation failed.
	ErrCodeBadArgument RuntimeErrorCode = "BAD_ARGUMENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RunID != "" && e.Op != "" {
		return fmt.Sprintf("%s: %s (run=%s, step=%d, op=%s)", e.Code, e.Message, e.RunID, e.Step, e.Op)
	}
	if e.RunID != "" {
		return fmt.Sprintf("%s: %s (run=%s, step=%d)", e.Code, e.Message, e.RunID, e.Step)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsNoOutcome returns true if the error is a no-outcome error.
// Uses errors.As to handle wrapped errors.
func IsNoOutcome(err error) bool { return hasCode(err, ErrCodeNoOutcome) }

// IsUnknownExternal returns true if the error reports a missing semantics.
func IsUnknownExternal(err error) bool { return hasCode(err, ErrCodeUnknownExternal) }

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewNoOutcomeError creates a RuntimeError for a call without outcome.
func NewNoOutcomeError(runID string, step int, op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoOutcome,
		Message: "call has no outcome",
		RunID:   runID,
		Step:    step,
		Op:      op,
	}
}

// NewQuotaError creates a RuntimeError for quota exceeded.
func NewQuotaError(runID string, step int, cause *StepsExceededError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("run exceeded max steps (%d > %d)", cause.Steps, cause.Limit),
		RunID:   runID,
		Step:    step,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", cause.Steps),
			"max_steps": fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

// NewUnknownExternalError creates a RuntimeError for an external function
// that cannot be resolved.
func NewUnknownExternalError(runID string, step int, op string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownExternal,
		Message: cause.Error(),
		RunID:   runID,
		Step:    step,
		Op:      op,
		Err:     cause,
	}
}

// NewArityError creates a RuntimeError for a call with got arguments where
// the signature wants want.
func NewArityError(runID string, step int, op string, got, want int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadArity,
		Message: fmt.Sprintf("got %d arguments, signature wants %d", got, want),
		RunID:   runID,
		Step:    step,
		Op:      op,
		Details: map[string]string{
			"got":  fmt.Sprintf("%d", got),
			"want": fmt.Sprintf("%d", want),
		},
	}
}

// NewBadArgumentError creates a RuntimeError for arguments that failed to
// evaluate.
func NewBadArgumentError(runID string, step int, op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadArgument,
		Message: "argument evaluation failed",
		RunID:   runID,
		Step:    step,
		Op:      op,
	}
}
