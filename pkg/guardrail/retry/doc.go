// Package retry implements the bounded regenerate-on-block loop.
//
// The orchestrator is engaged only when the output phase resolves to
// Blocked and a retry configuration is present. Each attempt asks a
// caller-supplied builder for new call parameters (given the blocking
// summary, the previous parameters, and the original parameters), re-invokes
// the underlying call, and re-runs the output pipeline. Attempts are
// strictly sequential: each depends on the previous summary.
package retry
