package gate

import (
	"testing"

	"mercator-hq/callisto/pkg/guardrail"
)

func summaryWith(results ...guardrail.PolicyResult) *guardrail.ExecutionSummary {
	return guardrail.Aggregate(results)
}

func triggered(name string, verdict guardrail.Verdict) guardrail.PolicyResult {
	verdict.Triggered = true
	return guardrail.PolicyResult{PolicyName: name, Verdict: verdict}
}

func TestDecide_Transitions(t *testing.T) {
	clean := summaryWith(guardrail.PolicyResult{PolicyName: "p"})
	dirty := summaryWith(triggered("p", guardrail.Verdict{Severity: guardrail.SeverityHigh}))

	tests := []struct {
		name    string
		config  *Config
		summary *guardrail.ExecutionSummary
		want    Outcome
	}{
		{
			name:    "clean summary is always allowed",
			config:  DefaultConfig(),
			summary: clean,
			want:    OutcomeAllowed,
		},
		{
			name:    "clean summary allowed even with replace configured",
			config:  DefaultConfig().WithReplaceOnBlocked(true),
			summary: clean,
			want:    OutcomeAllowed,
		},
		{
			name:    "triggered with throw blocks",
			config:  DefaultConfig(),
			summary: dirty,
			want:    OutcomeBlocked,
		},
		{
			name:    "triggered without throw warns",
			config:  DefaultConfig().WithThrowOnBlocked(false),
			summary: dirty,
			want:    OutcomeWarned,
		},
		{
			name:    "replace wins over throw when both set",
			config:  DefaultConfig().WithThrowOnBlocked(true).WithReplaceOnBlocked(true),
			summary: dirty,
			want:    OutcomeReplaced,
		},
		{
			name:    "replace without throw still replaces",
			config:  DefaultConfig().WithThrowOnBlocked(false).WithReplaceOnBlocked(true),
			summary: dirty,
			want:    OutcomeReplaced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.config, tt.summary)
			if got.Outcome != tt.want {
				t.Errorf("Decide = %s, want %s", got.Outcome, tt.want)
			}
		})
	}
}

func TestDecide_ReplacementSelection(t *testing.T) {
	cfg := DefaultConfig().WithReplaceOnBlocked(true).WithPlaceholder("[redacted]")

	t.Run("policy replacement preferred", func(t *testing.T) {
		summary := summaryWith(
			triggered("a", guardrail.Verdict{Suggestion: "try again"}),
			triggered("b", guardrail.Verdict{Replacement: "safe text"}),
		)
		d := Decide(cfg, summary)
		if d.Replacement != "safe text" {
			t.Errorf("Expected policy replacement, got %q", d.Replacement)
		}
	})

	t.Run("placeholder when nothing offered", func(t *testing.T) {
		summary := summaryWith(triggered("a", guardrail.Verdict{}))
		d := Decide(cfg, summary)
		if d.Replacement != "[redacted]" {
			t.Errorf("Expected placeholder, got %q", d.Replacement)
		}
	})

	t.Run("default placeholder as last resort", func(t *testing.T) {
		bare := &Config{ReplaceOnBlocked: true}
		summary := summaryWith(triggered("a", guardrail.Verdict{}))
		d := Decide(bare, summary)
		if d.Replacement != DefaultPlaceholder {
			t.Errorf("Expected default placeholder, got %q", d.Replacement)
		}
	})
}

func TestDecision_Allowed(t *testing.T) {
	if (Decision{Outcome: OutcomeBlocked}).Allowed() {
		t.Error("Blocked must not be allowed")
	}
	for _, o := range []Outcome{OutcomeAllowed, OutcomeWarned, OutcomeReplaced} {
		if !(Decision{Outcome: o}).Allowed() {
			t.Errorf("%s must be allowed", o)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
	bad := &Config{ReplaceOnBlocked: true, Placeholder: ""}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for replace without placeholder")
	}
}
