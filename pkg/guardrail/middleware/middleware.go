package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/executor"
	"mercator-hq/callisto/pkg/guardrail/gate"
	"mercator-hq/callisto/pkg/guardrail/retry"
	"mercator-hq/callisto/pkg/guardrail/stream"
	"mercator-hq/callisto/pkg/model"
	"mercator-hq/callisto/pkg/telemetry/logging"
)

// Adapter wraps one underlying generative call with input and output
// guardrail pipelines. It is safe for concurrent use; all per-invocation
// state lives on the stack or in the stream session.
type Adapter struct {
	config  *Config
	exec    *executor.Executor
	monitor *stream.Monitor
	logger  *slog.Logger
}

// New creates a middleware adapter from the given configuration.
func New(config *Config) (*Adapter, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: middleware config cannot be nil", guardrail.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exec, err := executor.New(config.Executor, logger)
	if err != nil {
		return nil, err
	}
	if config.Tracer != nil {
		exec = exec.WithTracer(config.Tracer)
	}

	a := &Adapter{
		config: config,
		exec:   exec,
		logger: logger,
	}

	if config.Stream != nil {
		monitor, err := stream.NewMonitor(config.StreamMonitor, exec, config.OutputPolicies, logger)
		if err != nil {
			return nil, err
		}
		a.monitor = monitor.
			WithCheckpointFunc(a.onCheckpoint).
			WithTerminateFunc(a.onTerminate)
	}

	return a, nil
}

// Complete performs a guarded one-shot call.
//
// The input pipeline runs first. A Blocked input returns a BlockedError
// without invoking the underlying call; a Replaced input returns a synthetic
// result without invoking it either. Otherwise the underlying call runs and
// the output pipeline evaluates its result, engaging the retry loop on a
// Blocked outcome when retries are configured.
func (a *Adapter) Complete(ctx context.Context, req model.Request) (*model.Result, error) {
	if a.config.Complete == nil {
		return nil, fmt.Errorf("%w: no complete call configured", guardrail.ErrInvalidConfig)
	}

	requestID := a.requestID(ctx, req)

	if replacement, err := a.inputPhase(ctx, req, requestID); err != nil {
		return nil, err
	} else if replacement != nil {
		return replacement, nil
	}

	result, err := a.config.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	return a.outputPhase(ctx, req, result, requestID)
}

// inputPhase runs the input pipeline and resolves its gate decision.
// A non-nil result means the phase was Replaced and the underlying call
// must be skipped.
func (a *Adapter) inputPhase(ctx context.Context, req model.Request, requestID string) (*model.Result, error) {
	if len(a.config.InputPolicies) == 0 {
		return nil, nil
	}

	ec := guardrail.NewInputContext(requestID, req)
	summary := guardrail.Aggregate(a.exec.Run(ctx, a.config.InputPolicies, ec))
	a.recordEvaluations(summary)

	decision := gate.Decide(a.config.Gate, summary)
	if decision.Outcome == gate.OutcomeAllowed {
		return nil, nil
	}

	// Observability first: hooks and metrics fire before any error or
	// substitution is visible to the caller.
	if a.config.OnInputBlocked != nil {
		a.config.OnInputBlocked(summary, ec)
	}
	a.recordOutcome(guardrail.FlavorInput, decision.Outcome, summary)

	switch decision.Outcome {
	case gate.OutcomeBlocked:
		return nil, guardrail.NewInputBlockedError(summary)

	case gate.OutcomeReplaced:
		if a.config.Metrics != nil {
			a.config.Metrics.RecordReplacement(string(guardrail.FlavorInput))
		}
		a.logger.Info("guardrail input replaced",
			"request_id", requestID,
			"triggered", summary.TriggeredNames(),
		)
		return a.syntheticResult(req, decision.Replacement), nil

	default: // Warned
		a.logger.Warn("guardrail input warned",
			"request_id", requestID,
			"triggered", summary.TriggeredNames(),
			"severity", summary.HighestSeverity,
		)
		return nil, nil
	}
}

// outputPhase evaluates a completed result against the output pipeline,
// retrying on Blocked when a retry configuration is present.
func (a *Adapter) outputPhase(ctx context.Context, req model.Request, result *model.Result, requestID string) (*model.Result, error) {
	if len(a.config.OutputPolicies) == 0 {
		return result, nil
	}

	summary, decision := a.evaluateOutput(ctx, req, result.Content, requestID, 0)
	if decision.Outcome != gate.OutcomeBlocked {
		return a.applyOutputDecision(result, decision), nil
	}

	if a.config.Retry == nil {
		return nil, guardrail.NewOutputBlockedError(summary)
	}

	orchestrator, err := retry.New(a.config.Retry, a.logger)
	if err != nil {
		return nil, err
	}

	attempt := func(ctx context.Context, params model.Request, n int) (*model.Result, *guardrail.ExecutionSummary, gate.Decision, error) {
		if a.config.Metrics != nil {
			a.config.Metrics.RecordRetry()
		}
		res, err := a.config.Complete(ctx, params)
		if err != nil {
			return nil, nil, gate.Decision{Outcome: gate.OutcomeBlocked}, err
		}
		s, d := a.evaluateOutput(ctx, params, res.Content, requestID, n)
		return res, s, d, nil
	}

	result, _, decision, err = orchestrator.Run(ctx, req, summary, attempt)
	if err != nil {
		return nil, err
	}
	return a.applyOutputDecision(result, decision), nil
}

// evaluateOutput runs the output pipeline once and resolves the gate,
// firing the blocked hook on any non-Allowed outcome.
func (a *Adapter) evaluateOutput(ctx context.Context, req model.Request, content, requestID string, attempt int) (*guardrail.ExecutionSummary, gate.Decision) {
	ec := guardrail.NewOutputContext(requestID, req, content, attempt)
	summary := guardrail.Aggregate(a.exec.Run(ctx, a.config.OutputPolicies, ec))
	a.recordEvaluations(summary)

	decision := gate.Decide(a.config.Gate, summary)
	if decision.Outcome == gate.OutcomeAllowed {
		return summary, decision
	}

	if a.config.OnOutputBlocked != nil {
		a.config.OnOutputBlocked(summary, ec, attempt)
	}
	a.recordOutcome(guardrail.FlavorOutput, decision.Outcome, summary)

	return summary, decision
}

// applyOutputDecision folds a non-Blocked output decision into the result.
func (a *Adapter) applyOutputDecision(result *model.Result, decision gate.Decision) *model.Result {
	if decision.Outcome != gate.OutcomeReplaced {
		return result
	}
	if a.config.Metrics != nil {
		a.config.Metrics.RecordReplacement(string(guardrail.FlavorOutput))
	}
	replaced := *result
	replaced.Content = decision.Replacement
	replaced.FinishReason = model.FinishReasonGuardrail
	return &replaced
}

// Stream performs a guarded streaming call.
//
// The input pipeline runs exactly as in Complete. On an allowed (or warned)
// input the underlying stream starts under a cancellable context and the
// monitor wraps its chunk channel; the returned session exposes the stream's
// accumulated state and termination status. A Replaced input yields a
// single-chunk synthetic stream without invoking the underlying call.
func (a *Adapter) Stream(ctx context.Context, req model.Request) (<-chan model.StreamChunk, *stream.Session, error) {
	if a.config.Stream == nil {
		return nil, nil, fmt.Errorf("%w: no streaming call configured", guardrail.ErrInvalidConfig)
	}

	requestID := a.requestID(ctx, req)

	if replacement, err := a.inputPhase(ctx, req, requestID); err != nil {
		return nil, nil, err
	} else if replacement != nil {
		return syntheticStream(replacement), stream.NewSession(), nil
	}

	upstreamCtx, cancel := context.WithCancel(ctx)
	chunks, err := a.config.Stream(upstreamCtx, req)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	// The monitor runs under the parent context: cancel stops the
	// upstream producer only, so the marker chunk can still be delivered
	// after an abort.
	downstream, session := a.monitor.Attach(ctx, chunks, cancel, req, requestID)
	return downstream, session, nil
}

// onCheckpoint observes every streaming checkpoint.
func (a *Adapter) onCheckpoint(session *stream.Session, ec *guardrail.EvalContext, summary *guardrail.ExecutionSummary) {
	a.recordEvaluations(summary)
	if !summary.AnyTriggered() {
		return
	}

	if a.config.OnOutputBlocked != nil {
		a.config.OnOutputBlocked(summary, ec, 0)
	}
	if a.config.Metrics != nil {
		a.config.Metrics.RecordOutcome(
			string(guardrail.FlavorOutput), "stream_violation", summary.HighestSeverity.String())
	}
}

// onTerminate observes a monitor abort.
func (a *Adapter) onTerminate(session *stream.Session) {
	if a.config.Metrics != nil {
		a.config.Metrics.RecordStreamTermination()
	}
}

// requestID resolves the invocation's request ID: context first, then the
// request metadata, then a fresh UUID.
func (a *Adapter) requestID(ctx context.Context, req model.Request) string {
	if id := logging.RequestIDFrom(ctx); id != "" {
		return id
	}
	if id := req.Metadata["request_id"]; id != "" {
		return id
	}
	return uuid.NewString()
}

// syntheticResult builds the result returned for a Replaced input phase.
func (a *Adapter) syntheticResult(req model.Request, replacement string) *model.Result {
	return &model.Result{
		ID:           uuid.NewString(),
		Model:        req.Model,
		Content:      replacement,
		FinishReason: model.FinishReasonGuardrail,
		Created:      time.Now().Unix(),
	}
}

// syntheticStream wraps a synthetic result as a closed single-chunk stream.
func syntheticStream(result *model.Result) <-chan model.StreamChunk {
	ch := make(chan model.StreamChunk, 1)
	ch <- model.StreamChunk{
		ID:           result.ID,
		Model:        result.Model,
		Delta:        result.Content,
		FinishReason: result.FinishReason,
		Created:      result.Created,
	}
	close(ch)
	return ch
}

func (a *Adapter) recordEvaluations(summary *guardrail.ExecutionSummary) {
	if a.config.Metrics == nil {
		return
	}
	for _, r := range summary.Results {
		a.config.Metrics.RecordEvaluation(r.PolicyName, r.Verdict.Triggered, r.Elapsed)
	}
}

func (a *Adapter) recordOutcome(phase guardrail.Flavor, outcome gate.Outcome, summary *guardrail.ExecutionSummary) {
	if a.config.Metrics == nil {
		return
	}
	a.config.Metrics.RecordOutcome(string(phase), string(outcome), summary.HighestSeverity.String())
}
