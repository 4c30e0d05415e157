package policies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

// KeywordConfig contains configuration for the keyword policy.
type KeywordConfig struct {
	// Name overrides the policy name. Default: "keyword".
	Name string `yaml:"name"`

	// Flavor selects the phase this policy runs in. Default: input.
	Flavor guardrail.Flavor `yaml:"flavor"`

	// Keywords are the terms to match. At least one is required.
	Keywords []string `yaml:"keywords"`

	// CaseSensitive enables exact-case matching. Default: false.
	CaseSensitive bool `yaml:"case_sensitive"`

	// Severity assigned to a match. Default: medium.
	Severity guardrail.Severity `yaml:"severity"`

	// Replacement is optional substitute text offered to the gate.
	Replacement string `yaml:"replacement"`
}

// Keyword matches a fixed set of terms against the inspected text.
type Keyword struct {
	config   *KeywordConfig
	keywords []string
}

// NewKeyword creates a keyword policy.
func NewKeyword(config *KeywordConfig) (*Keyword, error) {
	if config == nil || len(config.Keywords) == 0 {
		return nil, fmt.Errorf("%w: keyword policy requires at least one keyword", guardrail.ErrInvalidConfig)
	}
	if config.Name == "" {
		config.Name = "keyword"
	}
	if config.Flavor == "" {
		config.Flavor = guardrail.FlavorInput
	}
	if config.Severity == guardrail.SeverityNone {
		config.Severity = guardrail.SeverityMedium
	}

	keywords := config.Keywords
	if !config.CaseSensitive {
		keywords = make([]string, len(config.Keywords))
		for i, k := range config.Keywords {
			keywords[i] = strings.ToLower(k)
		}
	}

	return &Keyword{config: config, keywords: keywords}, nil
}

// Name returns the policy name.
func (p *Keyword) Name() string { return p.config.Name }

// Description returns a human-readable description of the check.
func (p *Keyword) Description() string {
	return fmt.Sprintf("matches %d configured keyword(s)", len(p.keywords))
}

// Flavor returns the configured phase.
func (p *Keyword) Flavor() guardrail.Flavor { return p.config.Flavor }

// Timeout returns zero; the executor default applies.
func (p *Keyword) Timeout() time.Duration { return 0 }

// Evaluate checks the inspected text for any configured keyword.
func (p *Keyword) Evaluate(_ context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	text := contentFor(ec)
	if !p.config.CaseSensitive {
		text = strings.ToLower(text)
	}

	for _, kw := range p.keywords {
		if strings.Contains(text, kw) {
			v := guardrail.Trip(p.config.Severity, fmt.Sprintf("matched keyword %q", kw)).
				WithMetadata("keyword", kw)
			if p.config.Replacement != "" {
				v = v.WithReplacement(p.config.Replacement)
			}
			return v, nil
		}
	}
	return guardrail.Pass(), nil
}
