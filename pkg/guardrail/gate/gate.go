package gate

import (
	"fmt"

	"mercator-hq/callisto/pkg/guardrail"
)

// Outcome is the terminal state of one phase's decision.
type Outcome string

const (
	// OutcomeAllowed means no policy triggered; the flow proceeds.
	OutcomeAllowed Outcome = "allowed"

	// OutcomeWarned means policies triggered but the configuration does
	// not raise; the flow proceeds with the original content.
	OutcomeWarned Outcome = "warned"

	// OutcomeBlocked means policies triggered and the phase is rejected.
	OutcomeBlocked Outcome = "blocked"

	// OutcomeReplaced means policies triggered and the content is
	// substituted; the phase is treated as satisfied.
	OutcomeReplaced Outcome = "replaced"
)

// DefaultPlaceholder is substituted when replace-on-blocked is set and no
// triggered verdict carries its own replacement or suggestion.
const DefaultPlaceholder = "[content blocked by guardrails]"

// Config contains configuration for the decision gate.
type Config struct {
	// ThrowOnBlocked raises a BlockedError when policies trigger.
	// When false, triggered policies produce a Warned outcome instead.
	// Default: true.
	ThrowOnBlocked bool

	// ReplaceOnBlocked substitutes replacement content when policies
	// trigger, instead of blocking or warning. Takes precedence over
	// ThrowOnBlocked when both are set.
	// Default: false.
	ReplaceOnBlocked bool

	// Placeholder is the fallback replacement text when no triggered
	// verdict supplies one. Default: DefaultPlaceholder.
	Placeholder string
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() *Config {
	return &Config{
		ThrowOnBlocked:   true,
		ReplaceOnBlocked: false,
		Placeholder:      DefaultPlaceholder,
	}
}

// Validate validates the gate configuration.
func (c *Config) Validate() error {
	if c.ReplaceOnBlocked && c.Placeholder == "" {
		return fmt.Errorf("%w: placeholder required when replace-on-blocked is set", guardrail.ErrInvalidConfig)
	}
	return nil
}

// WithThrowOnBlocked sets whether triggered policies block the phase.
func (c *Config) WithThrowOnBlocked(v bool) *Config {
	c.ThrowOnBlocked = v
	return c
}

// WithReplaceOnBlocked sets whether triggered policies substitute content.
func (c *Config) WithReplaceOnBlocked(v bool) *Config {
	c.ReplaceOnBlocked = v
	return c
}

// WithPlaceholder sets the fallback replacement text.
func (c *Config) WithPlaceholder(text string) *Config {
	c.Placeholder = text
	return c
}

// Decision is the gate's resolution for one phase.
type Decision struct {
	// Outcome is the resolved state.
	Outcome Outcome

	// Replacement is the substitute content. Set only when Outcome is
	// OutcomeReplaced.
	Replacement string
}

// Allowed reports whether the caller-visible flow proceeds (everything but
// Blocked).
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeBlocked
}

// Decide resolves an execution summary to exactly one outcome.
//
// Transitions: no triggered verdicts -> Allowed; triggered and
// ReplaceOnBlocked -> Replaced (first available replacement/suggestion from
// the triggered results, else the placeholder); triggered and ThrowOnBlocked
// -> Blocked; otherwise -> Warned.
func Decide(config *Config, summary *guardrail.ExecutionSummary) Decision {
	if config == nil {
		config = DefaultConfig()
	}

	if !summary.AnyTriggered() {
		return Decision{Outcome: OutcomeAllowed}
	}

	if config.ReplaceOnBlocked {
		replacement, ok := summary.FirstReplacement()
		if !ok {
			replacement = config.Placeholder
			if replacement == "" {
				replacement = DefaultPlaceholder
			}
		}
		return Decision{Outcome: OutcomeReplaced, Replacement: replacement}
	}

	if config.ThrowOnBlocked {
		return Decision{Outcome: OutcomeBlocked}
	}

	return Decision{Outcome: OutcomeWarned}
}
