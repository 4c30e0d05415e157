package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/callisto/pkg/guardrail"
)

// Config contains configuration for the policy executor.
type Config struct {
	// DefaultTimeout bounds a single policy evaluation when the policy
	// does not declare its own timeout.
	// Default: 5 seconds.
	DefaultTimeout time.Duration

	// Parallelism caps how many policies evaluate concurrently.
	// Zero means unbounded (one goroutine per policy).
	Parallelism int
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 5 * time.Second,
		Parallelism:    0,
	}
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: default timeout must be positive", guardrail.ErrInvalidConfig)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism cannot be negative", guardrail.ErrInvalidConfig)
	}
	return nil
}

// WithDefaultTimeout sets the default per-policy timeout.
func (c *Config) WithDefaultTimeout(timeout time.Duration) *Config {
	c.DefaultTimeout = timeout
	return c
}

// WithParallelism sets the concurrency cap.
func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

// Executor runs guardrail policies concurrently with isolation and timeouts.
type Executor struct {
	config *Config
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a new policy executor.
func New(config *Config, logger *slog.Logger) (*Executor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		config: config,
		logger: logger,
	}, nil
}

// WithTracer sets the OpenTelemetry tracer used to span each evaluation.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer
	return e
}

// Run evaluates all policies against the context and returns one result per
// policy, in registration order.
//
// Policies execute concurrently (bounded by the configured parallelism cap);
// a slow policy failing closed does not delay other policies' verdicts. Run
// itself only returns once every policy has completed or timed out.
func (e *Executor) Run(ctx context.Context, policies []guardrail.Policy, ec *guardrail.EvalContext) []guardrail.PolicyResult {
	if len(policies) == 0 {
		return nil
	}

	results := make([]guardrail.PolicyResult, len(policies))

	var sem chan struct{}
	if e.config.Parallelism > 0 {
		sem = make(chan struct{}, e.config.Parallelism)
	}

	var wg sync.WaitGroup
	for i, p := range policies {
		wg.Add(1)
		go func(i int, p guardrail.Policy) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[i] = e.runOne(ctx, p, ec)
		}(i, p)
	}
	wg.Wait()

	return results
}

// runOne evaluates a single policy with timeout and panic isolation.
func (e *Executor) runOne(ctx context.Context, p guardrail.Policy, ec *guardrail.EvalContext) guardrail.PolicyResult {
	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var span trace.Span
	if e.tracer != nil {
		evalCtx, span = e.tracer.Start(evalCtx, "guardrail.evaluate",
			trace.WithAttributes(
				attribute.String("guardrail.policy", p.Name()),
				attribute.String("guardrail.phase", string(ec.Phase)),
				attribute.Bool("guardrail.partial", ec.Partial),
			),
		)
	}

	start := time.Now()
	verdict, err := e.evaluate(evalCtx, p, ec)
	elapsed := time.Since(start)

	if err == nil && evalCtx.Err() != nil {
		// The policy returned, but only after its deadline passed.
		err = &guardrail.ExecutionFailure{
			PolicyName: p.Name(),
			Timeout:    true,
			Cause:      evalCtx.Err(),
		}
	}

	if err != nil {
		verdict = failClosed(p.Name(), err)
		e.logger.Error("guardrail policy failed closed",
			"policy", p.Name(),
			"phase", ec.Phase,
			"request_id", ec.RequestID,
			"error", err,
		)
	}

	if span != nil {
		span.SetAttributes(
			attribute.Bool("guardrail.triggered", verdict.Triggered),
			attribute.String("guardrail.severity", verdict.Severity.String()),
		)
		span.End()
	}

	e.logger.Debug("guardrail policy evaluated",
		"policy", p.Name(),
		"phase", ec.Phase,
		"request_id", ec.RequestID,
		"triggered", verdict.Triggered,
		"elapsed", elapsed,
	)

	return guardrail.PolicyResult{
		PolicyName: p.Name(),
		Verdict:    verdict,
		Elapsed:    elapsed,
	}
}

// evaluate calls the policy in a goroutine so a hung policy cannot pin Run
// past its deadline, and recovers panics into errors.
func (e *Executor) evaluate(ctx context.Context, p guardrail.Policy, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	type outcome struct {
		verdict guardrail.Verdict
		err     error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &guardrail.ExecutionFailure{
					PolicyName: p.Name(),
					Cause:      fmt.Errorf("panic: %v", r),
				}}
			}
		}()
		v, err := p.Evaluate(ctx, ec)
		if err != nil {
			err = &guardrail.ExecutionFailure{PolicyName: p.Name(), Cause: err}
		}
		done <- outcome{verdict: v, err: err}
	}()

	select {
	case out := <-done:
		return out.verdict, out.err
	case <-ctx.Done():
		return guardrail.Verdict{}, &guardrail.ExecutionFailure{
			PolicyName: p.Name(),
			Timeout:    true,
			Cause:      ctx.Err(),
		}
	}
}

// failClosed synthesizes the verdict used for a policy that errored,
// panicked, or timed out.
func failClosed(policyName string, err error) guardrail.Verdict {
	return guardrail.Verdict{
		Triggered: true,
		Severity:  guardrail.SeverityHigh,
		Message:   fmt.Sprintf("policy execution error: %v", err),
		Metadata: map[string]any{
			"policy":      policyName,
			"fail_closed": true,
		},
	}
}
