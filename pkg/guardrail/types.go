package guardrail

import (
	"context"
	"time"
)

// Flavor identifies which phase a policy participates in.
type Flavor string

const (
	// FlavorInput policies see only the outbound request.
	FlavorInput Flavor = "input"

	// FlavorOutput policies see the request plus the produced result,
	// full or partial (see stream.Monitor for partial evaluation).
	FlavorOutput Flavor = "output"
)

// Policy is the narrow interface every guardrail implements.
//
// Policies are registered once per pipeline and must be safe for concurrent
// use: the executor evaluates all policies of a phase in parallel, and the
// streaming monitor re-evaluates output policies repeatedly against growing
// partial content. Any state a policy keeps (rate counters, review queues)
// is the policy author's responsibility to synchronize.
//
// Evaluate must return within its timeout (Timeout, or the executor default
// when zero). A policy that returns an error, panics, or times out is
// converted to a fail-closed triggered verdict and never silently passes.
type Policy interface {
	// Name returns the policy name, unique within a pipeline.
	Name() string

	// Description returns a human-readable description of the check.
	Description() string

	// Flavor returns whether this is an input or output policy.
	Flavor() Flavor

	// Timeout returns the per-policy evaluation timeout.
	// Zero means use the executor default.
	Timeout() time.Duration

	// Evaluate runs the check against the given read-only context.
	Evaluate(ctx context.Context, ec *EvalContext) (Verdict, error)
}

// Verdict is the outcome of one policy evaluation. Immutable once produced.
type Verdict struct {
	// Triggered reports whether the policy found a violation (a "tripwire").
	Triggered bool `json:"triggered"`

	// Message explains the violation (empty when not triggered).
	Message string `json:"message,omitempty"`

	// Severity classifies the violation. Meaningful only when Triggered.
	Severity Severity `json:"severity,omitempty"`

	// Metadata carries policy-specific details (matched pattern, counts).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Suggestion is an optional human-readable remediation hint.
	Suggestion string `json:"suggestion,omitempty"`

	// Replacement is an optional substitute text the gate may use when
	// replace-on-blocked is configured. Policies never edit content in
	// place; they only suggest.
	Replacement string `json:"replacement,omitempty"`
}

// Pass returns a non-triggered verdict.
func Pass() Verdict {
	return Verdict{}
}

// Trip returns a triggered verdict with the given severity and message.
func Trip(severity Severity, message string) Verdict {
	return Verdict{
		Triggered: true,
		Severity:  severity,
		Message:   message,
	}
}

// WithMetadata returns a copy of the verdict with the given metadata entry set.
func (v Verdict) WithMetadata(key string, value any) Verdict {
	meta := make(map[string]any, len(v.Metadata)+1)
	for k, val := range v.Metadata {
		meta[k] = val
	}
	meta[key] = value
	v.Metadata = meta
	return v
}

// WithReplacement returns a copy of the verdict carrying a replacement text.
func (v Verdict) WithReplacement(text string) Verdict {
	v.Replacement = text
	return v
}

// WithSuggestion returns a copy of the verdict carrying a remediation hint.
func (v Verdict) WithSuggestion(text string) Verdict {
	v.Suggestion = text
	return v
}
