package evidence

import (
	"context"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

// Record is one persisted guardrail intervention.
type Record struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`

	// RequestID is the middleware invocation the intervention belongs to.
	RequestID string `json:"request_id"`

	// Phase is the phase that triggered (input or output).
	Phase guardrail.Flavor `json:"phase"`

	// PolicyName is the triggered policy.
	PolicyName string `json:"policy_name"`

	// Severity is the verdict severity.
	Severity guardrail.Severity `json:"severity"`

	// Message is the verdict message.
	Message string `json:"message"`

	// Partial reports whether the verdict came from a streaming checkpoint.
	Partial bool `json:"partial"`

	// Attempt is the zero-based retry attempt the verdict belongs to.
	Attempt int `json:"attempt"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

// Store persists evidence records.
type Store interface {
	// Save writes one record.
	Save(ctx context.Context, rec Record) error

	// ByRequest returns all records for a request ID, oldest first.
	ByRequest(ctx context.Context, requestID string) ([]Record, error)

	// Prune deletes records created before the cutoff and returns how
	// many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}
