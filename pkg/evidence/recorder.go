package evidence

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/guardrail"
)

// Recorder converts blocked-hook observations into persisted records. It is
// designed to be wired as the middleware's OnInputBlocked and OnOutputBlocked
// hooks.
//
// Writes happen synchronously in the hook, matching the hook contract that
// observability completes before any error reaches the caller. A failed write
// is logged and dropped; evidence must never turn an intervention into an
// outage.
type Recorder struct {
	store  Store
	logger *slog.Logger

	// WriteTimeout bounds one store write. Default: 2 seconds.
	WriteTimeout time.Duration
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:        store,
		logger:       logger,
		WriteTimeout: 2 * time.Second,
	}
}

// OnInputBlocked records every triggered verdict of an input-phase summary.
func (r *Recorder) OnInputBlocked(summary *guardrail.ExecutionSummary, ec *guardrail.EvalContext) {
	r.record(summary, ec, 0)
}

// OnOutputBlocked records every triggered verdict of an output-phase summary.
func (r *Recorder) OnOutputBlocked(summary *guardrail.ExecutionSummary, ec *guardrail.EvalContext, attempt int) {
	r.record(summary, ec, attempt)
}

func (r *Recorder) record(summary *guardrail.ExecutionSummary, ec *guardrail.EvalContext, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), r.WriteTimeout)
	defer cancel()

	now := time.Now()
	for _, res := range summary.Blocked {
		rec := Record{
			ID:         uuid.NewString(),
			RequestID:  ec.RequestID,
			Phase:      ec.Phase,
			PolicyName: res.PolicyName,
			Severity:   res.Verdict.Severity,
			Message:    res.Verdict.Message,
			Partial:    ec.Partial,
			Attempt:    attempt,
			CreatedAt:  now,
		}
		if err := r.store.Save(ctx, rec); err != nil {
			r.logger.Error("evidence write failed",
				"request_id", ec.RequestID,
				"policy", res.PolicyName,
				"error", err,
			)
		}
	}
}
