package guardrail

import "mercator-hq/callisto/pkg/model"

// EvalContext is the read-only snapshot passed to Policy.Evaluate.
//
// For input policies only Request is populated. For output policies the
// engine additionally sets Output: the full result text for final
// evaluation, or the accumulated partial text at a streaming checkpoint
// (Partial=true). The engine never mutates a context after handing it to
// the executor, and policies must not modify it either.
type EvalContext struct {
	// RequestID identifies the middleware invocation this evaluation
	// belongs to (propagated into logs, traces, and evidence records).
	RequestID string

	// Phase is the phase being evaluated.
	Phase Flavor

	// Request is the outbound request snapshot.
	Request model.Request

	// Output is the produced text. Empty during the input phase.
	Output string

	// Partial reports that Output is an incomplete, still-growing stream
	// prefix. Output policies must tolerate partial content; this is part
	// of their contract, not an engine bug.
	Partial bool

	// Attempt is the zero-based retry attempt this evaluation belongs to
	// (0 for the initial call).
	Attempt int
}

// NewInputContext builds an evaluation context for the input phase.
func NewInputContext(requestID string, req model.Request) *EvalContext {
	return &EvalContext{
		RequestID: requestID,
		Phase:     FlavorInput,
		Request:   req,
	}
}

// NewOutputContext builds an evaluation context for the output phase against
// a complete result.
func NewOutputContext(requestID string, req model.Request, output string, attempt int) *EvalContext {
	return &EvalContext{
		RequestID: requestID,
		Phase:     FlavorOutput,
		Request:   req,
		Output:    output,
		Attempt:   attempt,
	}
}

// NewPartialContext builds an evaluation context for a streaming checkpoint.
func NewPartialContext(requestID string, req model.Request, partial string) *EvalContext {
	return &EvalContext{
		RequestID: requestID,
		Phase:     FlavorOutput,
		Request:   req,
		Output:    partial,
		Partial:   true,
	}
}
