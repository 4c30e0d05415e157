package policies

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

// CounterStore counts requests per key within a sliding window. A store must
// be safe for concurrent use; the rate limiter calls it from the executor's
// policy goroutines.
type CounterStore interface {
	// Increment records one request for key at the current time and
	// returns the number of requests seen within the trailing window,
	// including this one.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)

	// Close releases store resources.
	Close() error
}

// RateLimitConfig contains configuration for the rate-limit policy.
type RateLimitConfig struct {
	// Name overrides the policy name. Default: "ratelimit".
	Name string `yaml:"name"`

	// Limit is the maximum requests per key per window. Required.
	Limit int `yaml:"limit"`

	// Window is the sliding window length. Default: 1 minute.
	Window time.Duration `yaml:"window"`

	// Severity assigned when the limit is exceeded. Default: medium.
	Severity guardrail.Severity `yaml:"severity"`
}

// RateLimit throttles requests per user within a sliding window. The key is
// the request's User field, falling back to the request ID so anonymous
// requests are not pooled into one bucket. Input flavor only.
type RateLimit struct {
	config *RateLimitConfig
	store  CounterStore
}

// NewRateLimit creates a rate-limit policy over the given counter store.
func NewRateLimit(config *RateLimitConfig, store CounterStore) (*RateLimit, error) {
	if config == nil || config.Limit <= 0 {
		return nil, fmt.Errorf("%w: rate limit requires a positive limit", guardrail.ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: rate limit requires a counter store", guardrail.ErrInvalidConfig)
	}
	if config.Name == "" {
		config.Name = "ratelimit"
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.Severity == guardrail.SeverityNone {
		config.Severity = guardrail.SeverityMedium
	}
	return &RateLimit{config: config, store: store}, nil
}

// Name returns the policy name.
func (p *RateLimit) Name() string { return p.config.Name }

// Description returns a human-readable description of the check.
func (p *RateLimit) Description() string {
	return fmt.Sprintf("limits each user to %d requests per %s", p.config.Limit, p.config.Window)
}

// Flavor returns FlavorInput; rate limiting applies before the call.
func (p *RateLimit) Flavor() guardrail.Flavor { return guardrail.FlavorInput }

// Timeout returns zero; the executor default applies.
func (p *RateLimit) Timeout() time.Duration { return 0 }

// Evaluate counts this request against the caller's window.
func (p *RateLimit) Evaluate(ctx context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	key := ec.Request.User
	if key == "" {
		key = ec.RequestID
	}

	count, err := p.store.Increment(ctx, key, p.config.Window)
	if err != nil {
		return guardrail.Verdict{}, fmt.Errorf("rate limit counter: %w", err)
	}

	if count <= p.config.Limit {
		return guardrail.Pass(), nil
	}
	return guardrail.Trip(p.config.Severity,
		fmt.Sprintf("rate limit exceeded: %d requests in %s (limit %d)", count, p.config.Window, p.config.Limit)).
		WithMetadata("count", count).
		WithMetadata("limit", p.config.Limit).
		WithSuggestion("retry after the window elapses"), nil
}
