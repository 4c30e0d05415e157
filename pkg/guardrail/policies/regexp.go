package policies

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

// RegexpConfig contains configuration for the pattern policy.
type RegexpConfig struct {
	// Name overrides the policy name. Default: "regexp".
	Name string `yaml:"name"`

	// Flavor selects the phase this policy runs in. Default: output.
	Flavor guardrail.Flavor `yaml:"flavor"`

	// Patterns are RE2 expressions. At least one is required.
	Patterns []string `yaml:"patterns"`

	// Severity assigned to a match. Default: high.
	Severity guardrail.Severity `yaml:"severity"`

	// Replacement is optional substitute text offered to the gate.
	Replacement string `yaml:"replacement"`
}

// Regexp matches compiled patterns against the inspected text. Patterns are
// compiled once at construction; Evaluate does no compilation.
type Regexp struct {
	config   *RegexpConfig
	compiled []*regexp.Regexp
}

// NewRegexp creates a pattern policy, compiling all patterns up front.
func NewRegexp(config *RegexpConfig) (*Regexp, error) {
	if config == nil || len(config.Patterns) == 0 {
		return nil, fmt.Errorf("%w: regexp policy requires at least one pattern", guardrail.ErrInvalidConfig)
	}
	if config.Name == "" {
		config.Name = "regexp"
	}
	if config.Flavor == "" {
		config.Flavor = guardrail.FlavorOutput
	}
	if config.Severity == guardrail.SeverityNone {
		config.Severity = guardrail.SeverityHigh
	}

	compiled := make([]*regexp.Regexp, len(config.Patterns))
	for i, pat := range config.Patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", guardrail.ErrInvalidConfig, pat, err)
		}
		compiled[i] = re
	}

	return &Regexp{config: config, compiled: compiled}, nil
}

// Name returns the policy name.
func (p *Regexp) Name() string { return p.config.Name }

// Description returns a human-readable description of the check.
func (p *Regexp) Description() string {
	return fmt.Sprintf("matches %d configured pattern(s)", len(p.compiled))
}

// Flavor returns the configured phase.
func (p *Regexp) Flavor() guardrail.Flavor { return p.config.Flavor }

// Timeout returns zero; the executor default applies.
func (p *Regexp) Timeout() time.Duration { return 0 }

// Evaluate checks the inspected text against each compiled pattern.
func (p *Regexp) Evaluate(_ context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	text := contentFor(ec)

	for _, re := range p.compiled {
		if match := re.FindString(text); match != "" {
			v := guardrail.Trip(p.config.Severity, fmt.Sprintf("matched pattern %q", re.String())).
				WithMetadata("pattern", re.String()).
				WithMetadata("match", match)
			if p.config.Replacement != "" {
				v = v.WithReplacement(p.config.Replacement)
			}
			return v, nil
		}
	}
	return guardrail.Pass(), nil
}
