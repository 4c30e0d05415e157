package guardrail

import "time"

// PolicyResult pairs a verdict with the policy that produced it and how long
// the evaluation took.
type PolicyResult struct {
	// PolicyName is the name of the policy that produced this verdict.
	PolicyName string `json:"policy_name"`

	// Verdict is the evaluation outcome.
	Verdict Verdict `json:"verdict"`

	// Elapsed is the wall-clock evaluation time for this policy.
	Elapsed time.Duration `json:"elapsed"`
}

// ExecutionSummary is the aggregate of one phase's policy results. It is
// built fresh per phase (input phase, output phase, each retry attempt,
// each streaming checkpoint) and never persisted by the engine.
type ExecutionSummary struct {
	// Results holds every policy result in registration order, triggered
	// or not.
	Results []PolicyResult `json:"results"`

	// Blocked is the ordered sublist of triggered results. Order follows
	// registration order, not severity, so callers can report
	// "first configured, first reported".
	Blocked []PolicyResult `json:"blocked"`

	// HighestSeverity is the maximum severity over triggered results,
	// SeverityNone when nothing triggered.
	HighestSeverity Severity `json:"highest_severity"`
}

// Aggregate reduces an ordered list of policy results into a summary.
//
// The reduction is pure and deterministic: severity is computed as a max
// (commutative), but Blocked preserves the input order exactly, which the
// executor guarantees to be registration order regardless of concurrent
// completion order.
func Aggregate(results []PolicyResult) *ExecutionSummary {
	summary := &ExecutionSummary{
		Results:         results,
		HighestSeverity: SeverityNone,
	}

	for _, r := range results {
		if !r.Verdict.Triggered {
			continue
		}
		summary.Blocked = append(summary.Blocked, r)
		summary.HighestSeverity = MaxSeverity(summary.HighestSeverity, r.Verdict.Severity)
	}

	return summary
}

// AnyTriggered reports whether at least one policy triggered.
func (s *ExecutionSummary) AnyTriggered() bool {
	return len(s.Blocked) > 0
}

// TriggeredNames returns the names of all triggered policies in
// registration order.
func (s *ExecutionSummary) TriggeredNames() []string {
	if len(s.Blocked) == 0 {
		return nil
	}
	names := make([]string, len(s.Blocked))
	for i, r := range s.Blocked {
		names[i] = r.PolicyName
	}
	return names
}

// FirstReplacement returns the first available replacement text from the
// triggered results, preferring an explicit Replacement over a Suggestion.
// Returns "" and false when no triggered verdict carries either.
func (s *ExecutionSummary) FirstReplacement() (string, bool) {
	for _, r := range s.Blocked {
		if r.Verdict.Replacement != "" {
			return r.Verdict.Replacement, true
		}
	}
	for _, r := range s.Blocked {
		if r.Verdict.Suggestion != "" {
			return r.Verdict.Suggestion, true
		}
	}
	return "", false
}
