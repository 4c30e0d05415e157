package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/gate"
	"mercator-hq/callisto/pkg/model"
)

// BuildParamsFunc produces the parameters for the next attempt. It receives
// the blocking summary, the immediately previous parameters, and the
// original parameters, so it can choose to accumulate corrective
// instructions or revert to baseline. That choice belongs to the caller,
// not the engine.
type BuildParamsFunc func(summary *guardrail.ExecutionSummary, last, original model.Request) (model.Request, error)

// AttemptFunc performs one regeneration attempt: invoke the underlying call
// with the given parameters, run the output pipeline against the result, and
// resolve the decision gate. attempt is 1-based.
type AttemptFunc func(ctx context.Context, params model.Request, attempt int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error)

// Config contains configuration for the retry orchestrator.
type Config struct {
	// MaxRetries bounds the number of regeneration attempts. The
	// underlying call is invoked at most MaxRetries+1 times per
	// middleware invocation.
	MaxRetries int

	// Backoff yields the delay before each retry attempt. Nil means no
	// delay; backoff.Stop from NextBackOff is treated as no delay.
	Backoff backoff.BackOff

	// BuildParams produces the next attempt's parameters. Required.
	BuildParams BuildParamsFunc
}

// Validate validates the retry configuration.
func (c *Config) Validate() error {
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max retries must be positive", guardrail.ErrInvalidConfig)
	}
	if c.BuildParams == nil {
		return fmt.Errorf("%w: retry requires a param builder", guardrail.ErrInvalidConfig)
	}
	return nil
}

// WithConstantBackoff sets a fixed delay between attempts.
func (c *Config) WithConstantBackoff(delay time.Duration) *Config {
	c.Backoff = backoff.NewConstantBackOff(delay)
	return c
}

// WithExponentialBackoff sets an exponential delay between attempts starting
// at the given interval.
func (c *Config) WithExponentialBackoff(initial time.Duration) *Config {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	c.Backoff = b
	return c
}

// State tracks one middleware invocation's retry progress. It lives only
// for the duration of that invocation.
type State struct {
	// Attempt is the number of retry attempts performed so far.
	Attempt int

	// MaxRetries is the configured bound.
	MaxRetries int

	// Original holds the parameters of the initial call.
	Original model.Request

	// Last holds the parameters of the most recent call.
	Last model.Request

	// LastSummary is the most recent blocking summary.
	LastSummary *guardrail.ExecutionSummary
}

// Orchestrator drives the regenerate-on-block loop.
type Orchestrator struct {
	config *Config
	logger *slog.Logger
}

// New creates a new retry orchestrator.
func New(config *Config, logger *slog.Logger) (*Orchestrator, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: retry config cannot be nil", guardrail.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{config: config, logger: logger}, nil
}

// Run executes the retry loop after an initial output-phase Blocked outcome.
//
// It returns the first non-blocked attempt's result, summary, and decision.
// When every attempt blocks, it returns a RetryExhaustedError carrying the
// last blocking summary; context cancellation aborts the loop with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, original model.Request, blocked *guardrail.ExecutionSummary, attempt AttemptFunc) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
	state := &State{
		MaxRetries:  o.config.MaxRetries,
		Original:    original,
		Last:        original,
		LastSummary: blocked,
	}

	if o.config.Backoff != nil {
		o.config.Backoff.Reset()
	}

	for state.Attempt < state.MaxRetries {
		if err := o.wait(ctx); err != nil {
			return nil, state.LastSummary, gate.Decision{Outcome: gate.OutcomeBlocked}, err
		}

		params, err := o.config.BuildParams(state.LastSummary, state.Last.Clone(), state.Original.Clone())
		if err != nil {
			return nil, state.LastSummary, gate.Decision{Outcome: gate.OutcomeBlocked},
				fmt.Errorf("building retry params: %w", err)
		}

		state.Attempt++
		o.logger.Info("guardrail retry attempt",
			"attempt", state.Attempt,
			"max_retries", state.MaxRetries,
			"triggered", state.LastSummary.TriggeredNames(),
		)

		result, summary, decision, err := attempt(ctx, params, state.Attempt)
		if err != nil {
			return nil, state.LastSummary, gate.Decision{Outcome: gate.OutcomeBlocked}, err
		}

		if decision.Outcome != gate.OutcomeBlocked {
			return result, summary, decision, nil
		}

		state.Last = params
		state.LastSummary = summary
	}

	return nil, state.LastSummary, gate.Decision{Outcome: gate.OutcomeBlocked},
		&guardrail.RetryExhaustedError{
			Attempts: state.Attempt,
			Blocked:  guardrail.NewOutputBlockedError(state.LastSummary),
		}
}

// wait sleeps for the next backoff interval, honoring ctx cancellation.
func (o *Orchestrator) wait(ctx context.Context) error {
	if o.config.Backoff == nil {
		return ctx.Err()
	}

	delay := o.config.Backoff.NextBackOff()
	if delay == backoff.Stop {
		return nil
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
