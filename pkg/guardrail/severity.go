package guardrail

import "fmt"

// Severity classifies how serious a triggered verdict is. The ordering is
// total: None < Low < Medium < High < Critical.
type Severity int

const (
	// SeverityNone is the implicit severity when no verdict triggered.
	// It sorts below every real severity.
	SeverityNone Severity = iota

	// SeverityLow indicates a minor, informational violation.
	SeverityLow

	// SeverityMedium indicates a violation that warrants attention.
	SeverityMedium

	// SeverityHigh indicates a serious violation. Fail-closed verdicts
	// synthesized for misbehaving policies use this severity.
	SeverityHigh

	// SeverityCritical indicates a violation that must stop processing
	// immediately. During streaming, a critical verdict aborts the stream
	// regardless of any violation-count threshold.
	SeverityCritical
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity parses a severity name ("low", "medium", "high", "critical",
// "none"). Returns an error for unknown names.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "none", "":
		return SeverityNone, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity: %q", s)
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s >= other
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// MarshalYAML implements yaml.Marshaler.
func (s Severity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Severity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Severity) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
