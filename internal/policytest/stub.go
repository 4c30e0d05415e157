// Package policytest provides configurable stub policies for engine tests.
package policytest

import (
	"context"
	"sync/atomic"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

// Stub is a scriptable policy. The zero value passes everything.
type Stub struct {
	// PolicyName is the policy name. Default: "stub".
	PolicyName string

	// PolicyFlavor is the phase. Default: input.
	PolicyFlavor guardrail.Flavor

	// PolicyTimeout is the declared per-policy timeout.
	PolicyTimeout time.Duration

	// Verdict is returned by Evaluate when Fn is nil.
	Verdict guardrail.Verdict

	// Err is returned by Evaluate when set.
	Err error

	// Delay is slept (context-aware) before returning.
	Delay time.Duration

	// PanicMsg makes Evaluate panic when non-empty.
	PanicMsg string

	// Fn, when set, replaces the scripted behavior entirely.
	Fn func(ctx context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error)

	evals atomic.Int64
}

// Name implements guardrail.Policy.
func (s *Stub) Name() string {
	if s.PolicyName == "" {
		return "stub"
	}
	return s.PolicyName
}

// Description implements guardrail.Policy.
func (s *Stub) Description() string { return "scripted test policy" }

// Flavor implements guardrail.Policy.
func (s *Stub) Flavor() guardrail.Flavor {
	if s.PolicyFlavor == "" {
		return guardrail.FlavorInput
	}
	return s.PolicyFlavor
}

// Timeout implements guardrail.Policy.
func (s *Stub) Timeout() time.Duration { return s.PolicyTimeout }

// Evaluate implements guardrail.Policy.
func (s *Stub) Evaluate(ctx context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
	s.evals.Add(1)

	if s.Fn != nil {
		return s.Fn(ctx, ec)
	}
	if s.PanicMsg != "" {
		panic(s.PanicMsg)
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return guardrail.Verdict{}, ctx.Err()
		}
	}
	if s.Err != nil {
		return guardrail.Verdict{}, s.Err
	}
	return s.Verdict, nil
}

// Evaluations returns how many times Evaluate was invoked.
func (s *Stub) Evaluations() int {
	return int(s.evals.Load())
}
