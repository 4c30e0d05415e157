package retry

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/gate"
	"mercator-hq/callisto/pkg/model"
)

func blockedSummary(name string) *guardrail.ExecutionSummary {
	return guardrail.Aggregate([]guardrail.PolicyResult{{
		PolicyName: name,
		Verdict:    guardrail.Verdict{Triggered: true, Severity: guardrail.SeverityHigh},
	}})
}

func passthroughParams(_ *guardrail.ExecutionSummary, last, _ model.Request) (model.Request, error) {
	return last, nil
}

func newOrchestrator(t *testing.T, cfg *Config) *Orchestrator {
	t.Helper()
	o, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func TestOrchestrator_SucceedsMidLoop(t *testing.T) {
	o := newOrchestrator(t, &Config{MaxRetries: 3, BuildParams: passthroughParams})

	calls := 0
	attempt := func(_ context.Context, params model.Request, n int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		calls++
		if calls < 2 {
			return nil, blockedSummary("pii"), gate.Decision{Outcome: gate.OutcomeBlocked}, nil
		}
		return &model.Result{Content: "clean"}, guardrail.Aggregate(nil), gate.Decision{Outcome: gate.OutcomeAllowed}, nil
	}

	result, _, decision, err := o.Run(context.Background(), model.Request{}, blockedSummary("pii"), attempt)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", calls)
	}
	if decision.Outcome != gate.OutcomeAllowed {
		t.Errorf("Expected allowed, got %s", decision.Outcome)
	}
	if result.Content != "clean" {
		t.Errorf("Unexpected result content: %q", result.Content)
	}
}

func TestOrchestrator_BoundsAttempts(t *testing.T) {
	const maxRetries = 3
	o := newOrchestrator(t, &Config{MaxRetries: maxRetries, BuildParams: passthroughParams})

	calls := 0
	attempt := func(_ context.Context, params model.Request, n int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		calls++
		return nil, blockedSummary("pii"), gate.Decision{Outcome: gate.OutcomeBlocked}, nil
	}

	_, _, _, err := o.Run(context.Background(), model.Request{}, blockedSummary("pii"), attempt)

	if calls != maxRetries {
		t.Errorf("Expected exactly %d retry attempts, got %d", maxRetries, calls)
	}

	var exhausted *guardrail.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected RetryExhaustedError, got %v", err)
	}
	if exhausted.Attempts != maxRetries {
		t.Errorf("Expected %d recorded attempts, got %d", maxRetries, exhausted.Attempts)
	}

	var blocked *guardrail.BlockedError
	if !errors.As(err, &blocked) {
		t.Error("Exhaustion error must unwrap to BlockedError")
	}
}

func TestOrchestrator_BuildParamsReceivesCopies(t *testing.T) {
	original := model.Request{
		Model:    "test-model",
		Messages: []model.Message{{Role: model.RoleUser, Content: "original"}},
	}

	build := func(_ *guardrail.ExecutionSummary, last, orig model.Request) (model.Request, error) {
		// Mutating the received values must not leak back.
		last.Messages[0].Content = "mutated"
		orig.Messages[0].Content = "mutated"
		next := last
		next.Temperature = 0.9
		return next, nil
	}

	o := newOrchestrator(t, &Config{MaxRetries: 1, BuildParams: build})

	var seen model.Request
	attempt := func(_ context.Context, params model.Request, n int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		seen = params
		return &model.Result{}, guardrail.Aggregate(nil), gate.Decision{Outcome: gate.OutcomeAllowed}, nil
	}

	if _, _, _, err := o.Run(context.Background(), original, blockedSummary("p"), attempt); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if original.Messages[0].Content != "original" {
		t.Error("Original params were mutated by the builder")
	}
	if seen.Temperature != 0.9 {
		t.Error("Built params did not reach the attempt")
	}
}

func TestOrchestrator_BuilderErrorAborts(t *testing.T) {
	buildErr := errors.New("no strategy")
	o := newOrchestrator(t, &Config{
		MaxRetries: 2,
		BuildParams: func(_ *guardrail.ExecutionSummary, _, _ model.Request) (model.Request, error) {
			return model.Request{}, buildErr
		},
	})

	attempt := func(_ context.Context, _ model.Request, _ int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		t.Fatal("Attempt must not run when the builder fails")
		return nil, nil, gate.Decision{}, nil
	}

	_, _, _, err := o.Run(context.Background(), model.Request{}, blockedSummary("p"), attempt)
	if !errors.Is(err, buildErr) {
		t.Errorf("Expected builder error, got %v", err)
	}
}

func TestOrchestrator_ContextCancellation(t *testing.T) {
	o := newOrchestrator(t, &Config{MaxRetries: 5, BuildParams: passthroughParams})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempt := func(_ context.Context, _ model.Request, _ int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		calls++
		cancel()
		return nil, blockedSummary("p"), gate.Decision{Outcome: gate.OutcomeBlocked}, nil
	}

	_, _, _, err := o.Run(ctx, model.Request{}, blockedSummary("p"), attempt)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected the loop to stop after cancellation, got %d attempts", calls)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := &Config{MaxRetries: 1, BuildParams: passthroughParams}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}
	if err := (&Config{MaxRetries: 0, BuildParams: passthroughParams}).Validate(); err == nil {
		t.Error("Expected error for zero retries")
	}
	if err := (&Config{MaxRetries: 1}).Validate(); err == nil {
		t.Error("Expected error for missing builder")
	}
}
