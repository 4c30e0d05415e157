// Package stream implements progressive guardrail evaluation of streaming
// responses.
//
// The monitor wraps an upstream chunk channel and re-runs output policies
// against the growing partial text at a bounded cadence (every chunk by
// default, or every N accumulated bytes). When a qualifying violation is
// observed (a critical-severity verdict, or a configured number of
// consecutive triggered checkpoints) the monitor cancels the upstream call
// and stops delivering chunks. Chunks already delivered downstream are never
// retracted; only further emission is suppressed.
package stream
