// Package gate implements the per-phase decision state machine that reduces
// an execution summary to exactly one outcome: Allowed, Warned, Blocked, or
// Replaced.
//
// Warned and Replaced are non-terminal: the caller-visible flow proceeds as
// if allowed, but blocked-observer hooks still fire so observability is
// preserved in every non-Allowed case. Blocked is terminal for the phase.
package gate
