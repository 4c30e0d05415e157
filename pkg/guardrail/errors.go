package guardrail

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrStreamTerminated indicates a monitored stream was aborted by the
	// guardrail engine before the underlying stream finished.
	ErrStreamTerminated = errors.New("stream terminated by guardrail")

	// ErrNoPolicies indicates an operation that requires at least one
	// policy was invoked with none.
	ErrNoPolicies = errors.New("no policies configured")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid guardrail configuration")
)

// BlockedError is raised to the caller when the decision gate resolves a
// phase to Blocked and no replacement applies. It carries the complete
// ExecutionSummary for the blocking phase.
type BlockedError struct {
	// Phase is the phase that blocked (input or output).
	Phase Flavor

	// Summary is the execution summary of the blocking phase.
	// Summary.Blocked is never empty.
	Summary *ExecutionSummary
}

// Error returns the error message.
func (e *BlockedError) Error() string {
	names := strings.Join(e.Summary.TriggeredNames(), ", ")
	return fmt.Sprintf("%s blocked by guardrails [%s] (severity %s)",
		e.Phase, names, e.Summary.HighestSeverity)
}

// NewInputBlockedError builds a BlockedError for the input phase.
func NewInputBlockedError(summary *ExecutionSummary) *BlockedError {
	return &BlockedError{Phase: FlavorInput, Summary: summary}
}

// NewOutputBlockedError builds a BlockedError for the output phase.
func NewOutputBlockedError(summary *ExecutionSummary) *BlockedError {
	return &BlockedError{Phase: FlavorOutput, Summary: summary}
}

// RetryExhaustedError is raised when the retry loop completed without a
// non-blocked outcome. It specializes BlockedError: errors.As against
// *BlockedError matches via Unwrap.
type RetryExhaustedError struct {
	// Attempts is the number of retry attempts performed (not counting
	// the initial call).
	Attempts int

	// Blocked carries the last blocking summary.
	Blocked *BlockedError
}

// Error returns the error message.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Blocked)
}

// Unwrap returns the underlying BlockedError.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Blocked
}

// ExecutionFailure describes a policy that threw, panicked, or timed out.
// It is never propagated to callers: the executor converts it to a
// fail-closed triggered verdict. The type exists so logs and evidence can
// distinguish error classes.
type ExecutionFailure struct {
	PolicyName string
	Timeout    bool
	Cause      error
}

// Error returns the error message.
func (e *ExecutionFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("policy %s: evaluation timeout: %v", e.PolicyName, e.Cause)
	}
	return fmt.Sprintf("policy %s: evaluation failed: %v", e.PolicyName, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionFailure) Unwrap() error {
	return e.Cause
}
