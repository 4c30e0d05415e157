// Package middleware composes the guardrail engine around one underlying
// generative call.
//
// For a one-shot call the adapter runs the input phase, the underlying
// CompleteFunc, and the output phase, engaging the retry orchestrator when
// the output phase blocks. For a streaming call it runs the input phase
// identically and then wraps the returned chunk channel with the streaming
// monitor; retries do not apply mid-stream.
//
// The blocked-observer hooks fire synchronously whenever a phase resolves
// to anything but Allowed, strictly before any error is raised, so
// observability is preserved on the failure path.
package middleware
