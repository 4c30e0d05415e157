package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/guardrail"
)

// ViolationEvent records one triggered checkpoint during a stream.
type ViolationEvent struct {
	// PolicyName is the policy that triggered.
	PolicyName string `json:"policy_name"`

	// Severity is the verdict severity.
	Severity guardrail.Severity `json:"severity"`

	// Timestamp is when the checkpoint observed the violation.
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks the state of one monitored stream. It is created when the
// stream starts, mutated only by the monitor goroutine driving that stream,
// and discarded when the stream ends or is aborted. Readers may inspect it
// concurrently through its accessor methods.
type Session struct {
	// ID uniquely identifies this stream session.
	ID string

	mu sync.RWMutex

	accumulated       string
	violations        []ViolationEvent
	consecutive       int
	terminated        bool
	terminationReason string
	lastSummary       *guardrail.ExecutionSummary
	checkpoints       int
	chunksDelivered   int
}

// NewSession creates a new stream session.
func NewSession() *Session {
	return &Session{
		ID: uuid.NewString(),
	}
}

// AccumulatedText returns the concatenation of all model-produced chunk
// deltas delivered downstream so far. Synthetic marker chunks are excluded.
func (s *Session) AccumulatedText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accumulated
}

// Violations returns the ordered history of triggered checkpoints.
func (s *Session) Violations() []ViolationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ViolationEvent, len(s.violations))
	copy(out, s.violations)
	return out
}

// ConsecutiveViolations returns the current run of consecutive triggered
// checkpoints.
func (s *Session) ConsecutiveViolations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consecutive
}

// Terminated reports whether the monitor aborted the stream.
func (s *Session) Terminated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminated
}

// TerminationReason returns why the stream was aborted, empty if it was not.
func (s *Session) TerminationReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.terminationReason
}

// LastSummary returns the execution summary of the most recent checkpoint,
// nil if no checkpoint ran.
func (s *Session) LastSummary() *guardrail.ExecutionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSummary
}

// Checkpoints returns how many progressive evaluations ran.
func (s *Session) Checkpoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints
}

// ChunksDelivered returns how many chunks were passed downstream.
func (s *Session) ChunksDelivered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunksDelivered
}

// append records a chunk delivered downstream.
func (s *Session) append(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accumulated += delta
	s.chunksDelivered++
}

// recordCheckpoint records the outcome of one progressive evaluation.
func (s *Session) recordCheckpoint(summary *guardrail.ExecutionSummary, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints++
	s.lastSummary = summary

	if !summary.AnyTriggered() {
		s.consecutive = 0
		return
	}

	s.consecutive++
	for _, r := range summary.Blocked {
		s.violations = append(s.violations, ViolationEvent{
			PolicyName: r.PolicyName,
			Severity:   r.Verdict.Severity,
			Timestamp:  now,
		})
	}
}

// terminate marks the session aborted. The first reason wins.
func (s *Session) terminate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.terminated = true
	s.terminationReason = reason
}
