// Package executor runs a set of guardrail policies concurrently against one
// evaluation context.
//
// Each policy is invoked in its own goroutine, bounded by a per-policy
// timeout and an optional parallelism cap. A policy that returns an error,
// panics, or times out is converted to a fail-closed triggered verdict
// (severity high) so a misbehaving policy can never silently pass. Results
// are returned in registration order regardless of completion order, which
// makes the downstream aggregation deterministic under any scheduling.
package executor
