package policies

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"mercator-hq/callisto/pkg/guardrail"
)

// LengthConfig contains configuration for the length policy.
type LengthConfig struct {
	// Name overrides the policy name. Default: "length".
	Name string `yaml:"name"`

	// Flavor selects the phase this policy runs in. Default: input.
	Flavor guardrail.Flavor `yaml:"flavor"`

	// MaxChars is the maximum number of runes allowed. Required.
	MaxChars int `yaml:"max_chars"`

	// Severity assigned when the limit is exceeded. Default: low.
	Severity guardrail.Severity `yaml:"severity"`
}

// Length rejects content beyond a configured rune count. As an output
// policy it tolerates partial content by construction: a growing prefix
// only ever moves toward the limit.
type Length struct {
	config *LengthConfig
}

// NewLength creates a length policy.
func NewLength(config *LengthConfig) (*Length, error) {
	if config == nil || config.MaxChars <= 0 {
		return nil, fmt.Errorf("%w: length policy requires a positive max", guardrail.ErrInvalidConfig)
	}
	if config.Name == "" {
		config.Name = "length"
	}
	if config.Flavor == "" {
		config.Flavor = guardrail.FlavorInput
	}
	if config.Severity == guardrail.SeverityNone {
		config.Severity = guardrail.SeverityLow
	}
	return &Length{config: config}, nil
}

// Name returns the policy name.
func (p *Length) Name() string { return p.config.Name }

// Description returns a human-readable description of the check.
func (p *Length) Description() string {
	return fmt.Sprintf("limits content to %d characters", p.config.MaxChars)
}

// Flavor returns the configured phase.
func (p *Length) Flavor() guardrail.Flavor { return p.config.Flavor }

// Timeout returns zero; the executor default applies.
func (p *Length) Timeout() time.Duration { return 0 }

// Evaluate checks the inspected text's rune count against the limit.
func (p *Length) Evaluate(_ context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	n := utf8.RuneCountInString(contentFor(ec))
	if n <= p.config.MaxChars {
		return guardrail.Pass(), nil
	}
	return guardrail.Trip(p.config.Severity,
		fmt.Sprintf("content length %d exceeds limit %d", n, p.config.MaxChars)).
		WithMetadata("length", n).
		WithMetadata("limit", p.config.MaxChars), nil
}
