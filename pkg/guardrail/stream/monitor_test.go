package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/internal/modeltest"
	"mercator-hq/callisto/internal/policytest"
	"mercator-hq/callisto/pkg/guardrail"
	"mercator-hq/callisto/pkg/guardrail/executor"
	"mercator-hq/callisto/pkg/model"
)

func newMonitor(t *testing.T, cfg *Config, policies ...guardrail.Policy) *Monitor {
	t.Helper()
	exec, err := executor.New(nil, nil)
	if err != nil {
		t.Fatalf("executor.New failed: %v", err)
	}
	m, err := NewMonitor(cfg, exec, policies, nil)
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}
	return m
}

// tripWhen returns an output policy that triggers with the given severity
// once the accumulated text is at least minLen long.
func tripWhen(name string, minLen int, severity guardrail.Severity) *policytest.Stub {
	return &policytest.Stub{
		PolicyName:   name,
		PolicyFlavor: guardrail.FlavorOutput,
		Fn: func(_ context.Context, ec *guardrail.EvalContext) (guardrail.Verdict, error) {
			if len(ec.Output) >= minLen {
				return guardrail.Trip(severity, "limit reached"), nil
			}
			return guardrail.Pass(), nil
		},
	}
}

func collect(t *testing.T, ch <-chan model.StreamChunk) []model.StreamChunk {
	t.Helper()
	var out []model.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, chunk)
		case <-timeout:
			t.Fatal("Timed out draining the stream")
		}
	}
}

func attach(t *testing.T, m *Monitor, deltas ...string) ([]model.StreamChunk, *Session) {
	t.Helper()
	streamer := modeltest.NewStreamer(deltas...)
	upstreamCtx, cancel := context.WithCancel(context.Background())
	upstream, err := streamer.Stream(upstreamCtx, model.Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	downstream, session := m.Attach(context.Background(), upstream, cancel, model.Request{Model: "test-model"}, "req-1")
	return collect(t, downstream), session
}

func TestMonitor_CleanStreamPassesThrough(t *testing.T) {
	m := newMonitor(t, nil, tripWhen("never", 1000, guardrail.SeverityCritical))

	chunks, session := attach(t, m, "hello ", "world")

	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if session.Terminated() {
		t.Error("Clean stream must not be terminated")
	}
	if got := session.AccumulatedText(); got != "hello world" {
		t.Errorf("AccumulatedText = %q", got)
	}
	if session.Checkpoints() != 2 {
		t.Errorf("Expected a checkpoint per chunk, got %d", session.Checkpoints())
	}
}

func TestMonitor_CriticalAbortsImmediately(t *testing.T) {
	// Each delta is one byte; the policy goes critical once four bytes have
	// accumulated, so exactly four chunks must reach the consumer.
	cfg := DefaultConfig()
	cfg.StopAfterViolations = 10 // must not matter for critical
	m := newMonitor(t, cfg, tripWhen("leak", 4, guardrail.SeverityCritical))

	chunks, session := attach(t, m, "a", "b", "c", "d", "e", "f")

	if len(chunks) != 4 {
		t.Fatalf("Expected 4 delivered chunks, got %d", len(chunks))
	}
	if !session.Terminated() {
		t.Fatal("Expected session to be terminated")
	}
	if !strings.Contains(session.TerminationReason(), "critical") {
		t.Errorf("Unexpected termination reason: %q", session.TerminationReason())
	}
	if got := session.AccumulatedText(); got != "abcd" {
		t.Errorf("AccumulatedText = %q, want %q", got, "abcd")
	}
}

func TestMonitor_DeliveredChunksAreNeverRetracted(t *testing.T) {
	m := newMonitor(t, nil, tripWhen("leak", 3, guardrail.SeverityCritical))

	chunks, _ := attach(t, m, "a", "b", "c", "d")

	// The violating chunk itself was already delivered and must stay
	// delivered; only later chunks are suppressed.
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	for i, want := range []string{"a", "b", "c"} {
		if chunks[i].Delta != want {
			t.Errorf("chunks[%d].Delta = %q, want %q", i, chunks[i].Delta, want)
		}
	}
}

func TestMonitor_ConsecutiveViolationThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StopAfterViolations = 2
	m := newMonitor(t, cfg, tripWhen("drift", 2, guardrail.SeverityMedium))

	chunks, session := attach(t, m, "a", "b", "c", "d", "e")

	// Checkpoint 1 ("a") passes, checkpoints 2 and 3 ("ab", "abc")
	// trigger; the second consecutive violation aborts.
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if !session.Terminated() {
		t.Fatal("Expected termination after consecutive violations")
	}
	if session.ConsecutiveViolations() != 2 {
		t.Errorf("ConsecutiveViolations = %d, want 2", session.ConsecutiveViolations())
	}
}

func TestMonitor_SingleNonCriticalViolationBelowThresholdContinues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StopAfterViolations = 3
	m := newMonitor(t, cfg, tripWhen("drift", 4, guardrail.SeverityLow))

	chunks, session := attach(t, m, "a", "b", "c", "d")

	// Only the last checkpoint triggers (one violation, threshold three);
	// the stream runs to completion.
	if len(chunks) != 4 {
		t.Fatalf("Expected all 4 chunks, got %d", len(chunks))
	}
	if session.Terminated() {
		t.Error("Stream must not terminate below the violation threshold")
	}
	if len(session.Violations()) != 1 {
		t.Errorf("Expected 1 recorded violation, got %d", len(session.Violations()))
	}
}

func TestMonitor_MarkerChunkOnReplace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReplaceOnBlocked = true
	cfg.Placeholder = "[cut off]"
	m := newMonitor(t, cfg, tripWhen("leak", 1, guardrail.SeverityCritical))

	chunks, session := attach(t, m, "a", "b", "c")

	if len(chunks) != 2 {
		t.Fatalf("Expected violating chunk plus marker, got %d chunks", len(chunks))
	}

	marker := chunks[len(chunks)-1]
	if marker.Delta != "[cut off]" {
		t.Errorf("Marker delta = %q", marker.Delta)
	}
	if marker.FinishReason != model.FinishReasonGuardrail {
		t.Errorf("Marker finish reason = %q", marker.FinishReason)
	}

	// The marker is synthetic and must not count as model output.
	if got := session.AccumulatedText(); got != "a" {
		t.Errorf("AccumulatedText = %q, want %q", got, "a")
	}
}

func TestMonitor_CheckpointCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckpointBytes = 4
	m := newMonitor(t, cfg, tripWhen("never", 1000, guardrail.SeverityHigh))

	// Six one-byte chunks with a 4-byte cadence: checkpoints after "abcd"
	// and after the final chunk.
	_, session := attach(t, m, "a", "b", "c", "d", "e", "f")

	if session.Checkpoints() != 2 {
		t.Errorf("Expected 2 checkpoints, got %d", session.Checkpoints())
	}
}

func TestMonitor_FinalOnlyMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeFinalOnly
	m := newMonitor(t, cfg, tripWhen("late", 1, guardrail.SeverityCritical))

	var observed *guardrail.ExecutionSummary
	m.WithCheckpointFunc(func(_ *Session, _ *guardrail.EvalContext, summary *guardrail.ExecutionSummary) {
		observed = summary
	})

	chunks, session := attach(t, m, "a", "b", "c")

	// Final-only evaluation happens after the stream closed; everything
	// was already delivered and nothing can be aborted.
	if len(chunks) != 3 {
		t.Fatalf("Expected all 3 chunks, got %d", len(chunks))
	}
	if session.Terminated() {
		t.Error("Final-only mode must not terminate the stream")
	}
	if session.Checkpoints() != 1 {
		t.Errorf("Expected exactly 1 evaluation, got %d", session.Checkpoints())
	}
	if observed == nil || !observed.AnyTriggered() {
		t.Error("Final evaluation summary was not reported")
	}
}

func TestMonitor_TerminateObserver(t *testing.T) {
	m := newMonitor(t, nil, tripWhen("leak", 1, guardrail.SeverityCritical))

	var terminated *Session
	m.WithTerminateFunc(func(s *Session) { terminated = s })

	_, session := attach(t, m, "a", "b")

	if terminated == nil {
		t.Fatal("Terminate observer did not fire")
	}
	if terminated != session {
		t.Error("Observer received a different session")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
	bad := DefaultConfig()
	bad.Mode = "sometimes"
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for unknown mode")
	}
	negative := DefaultConfig()
	negative.StopAfterViolations = -1
	if err := negative.Validate(); err == nil {
		t.Error("Expected error for negative threshold")
	}
}
