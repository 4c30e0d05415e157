package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/callisto/pkg/evidence"
	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/executor"
	"mercator-hq/callisto/pkg/guardrail/gate"
	"mercator-hq/callisto/pkg/guardrail/policies"
	"mercator-hq/callisto/pkg/guardrail/retry"
	"mercator-hq/callisto/pkg/guardrail/stream"
	"mercator-hq/callisto/pkg/telemetry/logging"
	"mercator-hq/callisto/pkg/telemetry/tracing"
)

// Duration wraps time.Duration with YAML support for values like "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Tracing    tracing.Config   `yaml:"tracing"`
	Guardrails GuardrailsConfig `yaml:"guardrails"`
	Evidence   EvidenceConfig   `yaml:"evidence"`
}

// GuardrailsConfig configures the guardrail engine.
type GuardrailsConfig struct {
	Executor ExecutorConfig `yaml:"executor"`
	Gate     GateConfig     `yaml:"gate"`
	Retry    RetryConfig    `yaml:"retry"`
	Stream   StreamConfig   `yaml:"stream"`
	Policies []PolicySpec   `yaml:"policies"`
}

// ExecutorConfig mirrors executor.Config in YAML form.
type ExecutorConfig struct {
	DefaultTimeout Duration `yaml:"default_timeout"`
	Parallelism    int      `yaml:"parallelism"`
}

// GateConfig mirrors gate.Config in YAML form.
type GateConfig struct {
	ThrowOnBlocked   bool   `yaml:"throw_on_blocked"`
	ReplaceOnBlocked bool   `yaml:"replace_on_blocked"`
	Placeholder      string `yaml:"placeholder"`
}

// RetryConfig configures the regeneration loop. The param builder is code,
// not configuration; it is supplied by the embedding application.
type RetryConfig struct {
	Enabled    bool     `yaml:"enabled"`
	MaxRetries int      `yaml:"max_retries"`
	Backoff    string   `yaml:"backoff"` // "none", "constant", "exponential"
	Interval   Duration `yaml:"interval"`
}

// StreamConfig mirrors stream.Config in YAML form.
type StreamConfig struct {
	Mode                string `yaml:"mode"`
	CheckpointBytes     int    `yaml:"checkpoint_bytes"`
	StopAfterViolations int    `yaml:"stop_after_violations"`
	ReplaceOnBlocked    bool   `yaml:"replace_on_blocked"`
	Placeholder         string `yaml:"placeholder"`
}

// PolicySpec declares one builtin policy.
type PolicySpec struct {
	// Type selects the builtin: "keyword", "regexp", "length", "ratelimit".
	Type string `yaml:"type"`

	Name        string             `yaml:"name"`
	Flavor      guardrail.Flavor   `yaml:"flavor"`
	Severity    guardrail.Severity `yaml:"severity"`
	Replacement string             `yaml:"replacement"`

	// Keyword and regexp fields.
	Keywords      []string `yaml:"keywords"`
	Patterns      []string `yaml:"patterns"`
	CaseSensitive bool     `yaml:"case_sensitive"`

	// Length fields.
	MaxChars int `yaml:"max_chars"`

	// Rate-limit fields.
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`

	// Store selects the rate-limit counter backend: "memory" (default) or
	// a SQLite database path.
	Store string `yaml:"store"`
}

// EvidenceConfig configures the audit trail.
type EvidenceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file. Empty means in-memory.
	Path string `yaml:"path"`

	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig mirrors evidence.RetentionConfig in YAML form.
type RetentionConfig struct {
	Period   Duration `yaml:"period"`
	Schedule string   `yaml:"schedule"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Tracing: *tracing.DefaultConfig(),
		Guardrails: GuardrailsConfig{
			Executor: ExecutorConfig{DefaultTimeout: Duration(5 * time.Second)},
			Gate: GateConfig{
				ThrowOnBlocked: true,
				Placeholder:    gate.DefaultPlaceholder,
			},
			Retry: RetryConfig{MaxRetries: 2, Backoff: "none"},
			Stream: StreamConfig{
				Mode:                string(stream.ModeProgressive),
				StopAfterViolations: 1,
			},
		},
		Evidence: EvidenceConfig{
			Retention: RetentionConfig{
				Period:   Duration(30 * 24 * time.Hour),
				Schedule: "0 3 * * *",
			},
		},
	}
}

// Load reads, parses, and validates the configuration file at path.
// Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration by materializing every engine config
// it declares.
func (c *Config) Validate() error {
	if err := c.Guardrails.ExecutorConfig().Validate(); err != nil {
		return err
	}
	if err := c.Guardrails.GateConfig().Validate(); err != nil {
		return err
	}
	if err := c.Guardrails.StreamConfig().Validate(); err != nil {
		return err
	}
	if c.Guardrails.Retry.Enabled && c.Guardrails.Retry.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be positive", guardrail.ErrInvalidConfig)
	}
	switch c.Guardrails.Retry.Backoff {
	case "", "none", "constant", "exponential":
	default:
		return fmt.Errorf("%w: unknown backoff %q", guardrail.ErrInvalidConfig, c.Guardrails.Retry.Backoff)
	}

	for _, spec := range c.Guardrails.Policies {
		// Validation must not touch the filesystem; force the in-memory
		// counter backend.
		spec.Store = "memory"
		if _, err := buildPolicy(spec); err != nil {
			return err
		}
	}

	if c.Evidence.Enabled {
		if err := c.Evidence.RetentionConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExecutorConfig materializes the executor configuration.
func (g *GuardrailsConfig) ExecutorConfig() *executor.Config {
	cfg := executor.DefaultConfig()
	if g.Executor.DefaultTimeout > 0 {
		cfg.DefaultTimeout = g.Executor.DefaultTimeout.Std()
	}
	cfg.Parallelism = g.Executor.Parallelism
	return cfg
}

// GateConfig materializes the gate configuration.
func (g *GuardrailsConfig) GateConfig() *gate.Config {
	cfg := gate.DefaultConfig()
	cfg.ThrowOnBlocked = g.Gate.ThrowOnBlocked
	cfg.ReplaceOnBlocked = g.Gate.ReplaceOnBlocked
	if g.Gate.Placeholder != "" {
		cfg.Placeholder = g.Gate.Placeholder
	}
	return cfg
}

// RetryConfig materializes the retry configuration around the given param
// builder. Returns nil when retries are disabled.
func (g *GuardrailsConfig) RetryConfig(build retry.BuildParamsFunc) *retry.Config {
	if !g.Retry.Enabled {
		return nil
	}
	cfg := &retry.Config{
		MaxRetries:  g.Retry.MaxRetries,
		BuildParams: build,
	}
	switch g.Retry.Backoff {
	case "constant":
		cfg.WithConstantBackoff(g.Retry.Interval.Std())
	case "exponential":
		cfg.WithExponentialBackoff(g.Retry.Interval.Std())
	}
	return cfg
}

// StreamConfig materializes the streaming monitor configuration.
func (g *GuardrailsConfig) StreamConfig() *stream.Config {
	cfg := stream.DefaultConfig()
	if g.Stream.Mode != "" {
		cfg.Mode = stream.Mode(g.Stream.Mode)
	}
	cfg.CheckpointBytes = g.Stream.CheckpointBytes
	cfg.StopAfterViolations = g.Stream.StopAfterViolations
	cfg.ReplaceOnBlocked = g.Stream.ReplaceOnBlocked
	if g.Stream.Placeholder != "" {
		cfg.Placeholder = g.Stream.Placeholder
	}
	return cfg
}

// BuildPolicies materializes the declared policies, split by flavor.
func (g *GuardrailsConfig) BuildPolicies() (input, output []guardrail.Policy, err error) {
	for _, spec := range g.Policies {
		p, err := buildPolicy(spec)
		if err != nil {
			return nil, nil, err
		}
		if p.Flavor() == guardrail.FlavorInput {
			input = append(input, p)
		} else {
			output = append(output, p)
		}
	}
	return input, output, nil
}

func buildPolicy(spec PolicySpec) (guardrail.Policy, error) {
	switch spec.Type {
	case "keyword":
		return policies.NewKeyword(&policies.KeywordConfig{
			Name:          spec.Name,
			Flavor:        spec.Flavor,
			Keywords:      spec.Keywords,
			CaseSensitive: spec.CaseSensitive,
			Severity:      spec.Severity,
			Replacement:   spec.Replacement,
		})
	case "regexp":
		return policies.NewRegexp(&policies.RegexpConfig{
			Name:        spec.Name,
			Flavor:      spec.Flavor,
			Patterns:    spec.Patterns,
			Severity:    spec.Severity,
			Replacement: spec.Replacement,
		})
	case "length":
		return policies.NewLength(&policies.LengthConfig{
			Name:     spec.Name,
			Flavor:   spec.Flavor,
			MaxChars: spec.MaxChars,
			Severity: spec.Severity,
		})
	case "ratelimit":
		store, err := buildCounterStore(spec.Store)
		if err != nil {
			return nil, err
		}
		return policies.NewRateLimit(&policies.RateLimitConfig{
			Name:     spec.Name,
			Limit:    spec.Limit,
			Window:   spec.Window.Std(),
			Severity: spec.Severity,
		}, store)
	default:
		return nil, fmt.Errorf("%w: unknown policy type %q", guardrail.ErrInvalidConfig, spec.Type)
	}
}

func buildCounterStore(store string) (policies.CounterStore, error) {
	if store == "" || store == "memory" {
		return policies.NewMemoryCounterStore(), nil
	}
	return policies.NewSQLiteCounterStore(store)
}

// RetentionConfig materializes the evidence retention configuration.
func (e *EvidenceConfig) RetentionConfig() *evidence.RetentionConfig {
	cfg := evidence.DefaultRetentionConfig()
	if e.Retention.Period > 0 {
		cfg.Period = e.Retention.Period.Std()
	}
	if e.Retention.Schedule != "" {
		cfg.Schedule = e.Retention.Schedule
	}
	return cfg
}
