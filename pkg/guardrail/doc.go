// Package guardrail defines the core data model for the Callisto guardrail
// engine: the Policy interface, verdicts, severities, evaluation contexts,
// execution summaries, and the error taxonomy shared by all phases.
//
// A guardrail policy is a named, opaque check evaluated against the outbound
// request (input flavor) or against the produced result (output flavor). The
// engine treats policies as black boxes: it only requires that Evaluate
// returns within its timeout or it is treated as failed, fail-closed.
//
// Subpackages build the execution machinery on top of this model:
//
//   - executor:   concurrent, isolated, timeout-bounded policy execution
//   - gate:       the per-phase decision state machine
//   - retry:      the bounded regenerate-on-block loop
//   - stream:     progressive evaluation of streaming responses
//   - middleware: the façade composing all of the above around one call
//   - policies:   builtin example policies (keyword, regexp, length, rate)
package guardrail
