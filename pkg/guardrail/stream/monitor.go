package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/executor"
	"mercator-hq/callisto/pkg/model"
)

// Mode selects when output policies run against a stream.
type Mode string

const (
	// ModeProgressive re-runs output policies against the growing partial
	// text at checkpoints while the stream is in flight.
	ModeProgressive Mode = "progressive"

	// ModeFinalOnly runs output policies once, against the complete text,
	// after the stream ends. Nothing can be retracted at that point; the
	// summary is reported through the session and the blocked hooks.
	ModeFinalOnly Mode = "final-only"
)

// Config contains configuration for the streaming monitor.
type Config struct {
	// Mode selects progressive or final-only evaluation.
	// Default: ModeProgressive.
	Mode Mode

	// CheckpointBytes sets the evaluation cadence: a checkpoint runs once
	// at least this many bytes accumulated since the previous checkpoint.
	// Zero means a checkpoint on every chunk.
	CheckpointBytes int

	// StopAfterViolations aborts the stream once this many consecutive
	// checkpoints have triggered. Zero disables count-based stopping.
	// A critical-severity verdict always aborts, regardless of this
	// setting.
	StopAfterViolations int

	// ReplaceOnBlocked emits one final synthetic marker chunk (with
	// FinishReason "guardrail") after an abort, instead of silently
	// truncating the stream.
	ReplaceOnBlocked bool

	// Placeholder is the marker chunk text when ReplaceOnBlocked is set.
	Placeholder string
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:                ModeProgressive,
		CheckpointBytes:     0,
		StopAfterViolations: 1,
		ReplaceOnBlocked:    false,
		Placeholder:         "[stream blocked by guardrails]",
	}
}

// Validate validates the monitor configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeProgressive, ModeFinalOnly:
	default:
		return fmt.Errorf("%w: unknown stream mode %q", guardrail.ErrInvalidConfig, c.Mode)
	}
	if c.CheckpointBytes < 0 {
		return fmt.Errorf("%w: checkpoint bytes cannot be negative", guardrail.ErrInvalidConfig)
	}
	if c.StopAfterViolations < 0 {
		return fmt.Errorf("%w: stop-after-violations cannot be negative", guardrail.ErrInvalidConfig)
	}
	return nil
}

// CheckpointFunc is invoked after every checkpoint with the evaluation
// context and summary of that checkpoint. The middleware uses it to fire
// blocked hooks and record metrics.
type CheckpointFunc func(session *Session, ec *guardrail.EvalContext, summary *guardrail.ExecutionSummary)

// TerminateFunc is invoked once when the monitor aborts a stream.
type TerminateFunc func(session *Session)

// Monitor incrementally evaluates output policies against a chunk stream.
type Monitor struct {
	config       *Config
	exec         *executor.Executor
	policies     []guardrail.Policy
	logger       *slog.Logger
	onCheckpoint CheckpointFunc
	onTerminate  TerminateFunc
}

// NewMonitor creates a streaming monitor over the given output policies.
func NewMonitor(config *Config, exec *executor.Executor, policies []guardrail.Policy, logger *slog.Logger) (*Monitor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: monitor requires an executor", guardrail.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		config:   config,
		exec:     exec,
		policies: policies,
		logger:   logger,
	}, nil
}

// WithCheckpointFunc sets the per-checkpoint observer.
func (m *Monitor) WithCheckpointFunc(fn CheckpointFunc) *Monitor {
	m.onCheckpoint = fn
	return m
}

// WithTerminateFunc sets the abort observer.
func (m *Monitor) WithTerminateFunc(fn TerminateFunc) *Monitor {
	m.onTerminate = fn
	return m
}

// Attach wraps an upstream chunk channel with progressive evaluation.
//
// cancel must cancel the context the upstream call was started with; the
// monitor invokes it when a qualifying violation is observed so that no
// further chunks are requested from the model. The returned channel is
// closed when the upstream closes or the monitor aborts the stream.
//
// Each chunk is delivered downstream before the checkpoint that includes it
// runs: a violation observed at chunk N suppresses chunk N+1 onward, never
// chunk N itself.
func (m *Monitor) Attach(ctx context.Context, upstream <-chan model.StreamChunk, cancel context.CancelFunc, req model.Request, requestID string) (<-chan model.StreamChunk, *Session) {
	session := NewSession()
	downstream := make(chan model.StreamChunk)

	go m.run(ctx, upstream, downstream, cancel, session, req, requestID)

	return downstream, session
}

func (m *Monitor) run(ctx context.Context, upstream <-chan model.StreamChunk, downstream chan<- model.StreamChunk, cancel context.CancelFunc, session *Session, req model.Request, requestID string) {
	defer close(downstream)

	pendingBytes := 0

	for chunk := range upstream {
		if session.Terminated() {
			// Upstream is cancelled; drain whatever was already in
			// flight without delivering it.
			continue
		}

		if chunk.Error != nil {
			m.deliver(ctx, downstream, chunk, session, false)
			continue
		}

		if !m.deliver(ctx, downstream, chunk, session, true) {
			return
		}
		pendingBytes += len(chunk.Delta)

		if m.config.Mode != ModeProgressive || len(m.policies) == 0 {
			continue
		}
		if m.config.CheckpointBytes > 0 && pendingBytes < m.config.CheckpointBytes && chunk.FinishReason == "" {
			continue
		}
		pendingBytes = 0

		summary := m.checkpoint(ctx, session, req, requestID)
		if reason := m.stopReason(session, summary); reason != "" {
			m.abort(ctx, downstream, cancel, session, requestID, reason)
			return
		}
	}

	if m.config.Mode == ModeFinalOnly && len(m.policies) > 0 && !session.Terminated() {
		ec := guardrail.NewOutputContext(requestID, req, session.AccumulatedText(), 0)
		summary := guardrail.Aggregate(m.exec.Run(ctx, m.policies, ec))
		session.recordCheckpoint(summary, time.Now())
		if m.onCheckpoint != nil {
			m.onCheckpoint(session, ec, summary)
		}
	}
}

// checkpoint runs output policies against the accumulated partial text.
func (m *Monitor) checkpoint(ctx context.Context, session *Session, req model.Request, requestID string) *guardrail.ExecutionSummary {
	ec := guardrail.NewPartialContext(requestID, req, session.AccumulatedText())
	results := m.exec.Run(ctx, m.policies, ec)
	summary := guardrail.Aggregate(results)
	session.recordCheckpoint(summary, time.Now())

	if m.onCheckpoint != nil {
		m.onCheckpoint(session, ec, summary)
	}

	return summary
}

// stopReason decides whether the last checkpoint qualifies for an abort.
// Critical severity always stops; otherwise the consecutive-violation
// threshold applies when configured.
func (m *Monitor) stopReason(session *Session, summary *guardrail.ExecutionSummary) string {
	if !summary.AnyTriggered() {
		return ""
	}

	if summary.HighestSeverity == guardrail.SeverityCritical {
		return fmt.Sprintf("critical violation: %s", strings.Join(summary.TriggeredNames(), ", "))
	}

	if m.config.StopAfterViolations > 0 && session.ConsecutiveViolations() >= m.config.StopAfterViolations {
		return fmt.Sprintf("%d consecutive violating checkpoint(s): %s",
			session.ConsecutiveViolations(), strings.Join(summary.TriggeredNames(), ", "))
	}

	return ""
}

// abort cancels the upstream call and optionally emits the marker chunk.
func (m *Monitor) abort(ctx context.Context, downstream chan<- model.StreamChunk, cancel context.CancelFunc, session *Session, requestID, reason string) {
	session.terminate(reason)
	if cancel != nil {
		cancel()
	}
	if m.onTerminate != nil {
		m.onTerminate(session)
	}

	m.logger.Warn("guardrail stream terminated",
		"session_id", session.ID,
		"request_id", requestID,
		"reason", reason,
		"chunks_delivered", session.ChunksDelivered(),
	)

	if m.config.ReplaceOnBlocked {
		marker := model.StreamChunk{
			ID:           session.ID,
			Delta:        m.config.Placeholder,
			FinishReason: model.FinishReasonGuardrail,
			Created:      time.Now().Unix(),
		}
		m.deliver(ctx, downstream, marker, session, false)
	}
}

// deliver sends a chunk downstream, honoring ctx cancellation. Model-produced
// deltas (track=true) are recorded in the session's accumulated text;
// synthetic marker and error chunks are not.
func (m *Monitor) deliver(ctx context.Context, downstream chan<- model.StreamChunk, chunk model.StreamChunk, session *Session, track bool) bool {
	select {
	case downstream <- chunk:
		if track {
			session.append(chunk.Delta)
		}
		return true
	case <-ctx.Done():
		session.terminate("context cancelled")
		return false
	}
}
