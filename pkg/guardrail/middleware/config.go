package middleware

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/executor"
	"mercator-hq/callisto/pkg/guardrail/gate"
	"mercator-hq/callisto/pkg/guardrail/retry"
	"mercator-hq/callisto/pkg/guardrail/stream"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// InputBlockedFunc observes a non-Allowed input-phase outcome.
type InputBlockedFunc func(summary *guardrail.ExecutionSummary, ec *guardrail.EvalContext)

// OutputBlockedFunc observes a non-Allowed output-phase outcome. attempt is
// the zero-based retry attempt the summary belongs to (0 for the initial
// call and for streaming checkpoints).
type OutputBlockedFunc func(summary *guardrail.ExecutionSummary, ec *guardrail.EvalContext, attempt int)

// Config contains configuration for the middleware adapter.
type Config struct {
	// InputPolicies run against the outbound request before the call.
	InputPolicies []guardrail.Policy

	// OutputPolicies run against the produced result, full or partial.
	OutputPolicies []guardrail.Policy

	// Complete performs the underlying one-shot call. Required for
	// Complete().
	Complete model.CompleteFunc

	// Stream performs the underlying streaming call. Required for
	// Stream().
	Stream model.StreamFunc

	// Executor configures concurrent policy execution.
	Executor *executor.Config

	// Gate configures the per-phase decision state machine.
	Gate *gate.Config

	// Retry, when present, enables the regenerate-on-block loop for
	// one-shot output phases.
	Retry *retry.Config

	// StreamMonitor configures progressive evaluation of streams.
	StreamMonitor *stream.Config

	// OnInputBlocked fires synchronously on every non-Allowed input
	// outcome, before any error is raised.
	OnInputBlocked InputBlockedFunc

	// OnOutputBlocked fires synchronously on every non-Allowed output
	// outcome, including each blocked retry attempt and each triggered
	// streaming checkpoint, before any error is raised.
	OnOutputBlocked OutputBlockedFunc

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics, when set, records guardrail metrics.
	Metrics *metrics.GuardrailMetrics

	// Tracer, when set, spans each policy evaluation.
	Tracer trace.Tracer
}

// DefaultConfig returns a configuration with engine defaults and no
// policies, callables, or hooks.
func DefaultConfig() *Config {
	return &Config{
		Executor:      executor.DefaultConfig(),
		Gate:          gate.DefaultConfig(),
		StreamMonitor: stream.DefaultConfig(),
	}
}

// Validate validates the adapter configuration.
func (c *Config) Validate() error {
	if c.Complete == nil && c.Stream == nil {
		return fmt.Errorf("%w: an underlying call is required", guardrail.ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.InputPolicies)+len(c.OutputPolicies))
	for _, p := range c.InputPolicies {
		if p.Flavor() != guardrail.FlavorInput {
			return fmt.Errorf("%w: policy %q is not input-flavored", guardrail.ErrInvalidConfig, p.Name())
		}
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: duplicate policy name %q", guardrail.ErrInvalidConfig, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}
	for _, p := range c.OutputPolicies {
		if p.Flavor() != guardrail.FlavorOutput {
			return fmt.Errorf("%w: policy %q is not output-flavored", guardrail.ErrInvalidConfig, p.Name())
		}
		if _, dup := seen[p.Name()]; dup {
			return fmt.Errorf("%w: duplicate policy name %q", guardrail.ErrInvalidConfig, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	if c.Gate != nil {
		if err := c.Gate.Validate(); err != nil {
			return err
		}
	}
	if c.Retry != nil {
		if err := c.Retry.Validate(); err != nil {
			return err
		}
	}
	if c.StreamMonitor != nil {
		if err := c.StreamMonitor.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithInputPolicies appends input policies.
func (c *Config) WithInputPolicies(policies ...guardrail.Policy) *Config {
	c.InputPolicies = append(c.InputPolicies, policies...)
	return c
}

// WithOutputPolicies appends output policies.
func (c *Config) WithOutputPolicies(policies ...guardrail.Policy) *Config {
	c.OutputPolicies = append(c.OutputPolicies, policies...)
	return c
}

// WithComplete sets the underlying one-shot call.
func (c *Config) WithComplete(fn model.CompleteFunc) *Config {
	c.Complete = fn
	return c
}

// WithStream sets the underlying streaming call.
func (c *Config) WithStream(fn model.StreamFunc) *Config {
	c.Stream = fn
	return c
}

// WithRetry sets the retry configuration.
func (c *Config) WithRetry(rc *retry.Config) *Config {
	c.Retry = rc
	return c
}
