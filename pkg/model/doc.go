// Package model defines the provider-agnostic request, result, and stream
// chunk types that guardrail pipelines evaluate, plus the caller-supplied
// function types that perform the underlying generative call.
//
// Callisto never talks to a model provider itself. The application hands the
// middleware a CompleteFunc (one-shot) or StreamFunc (streaming) and the
// engine wraps that single logical call with input and output guardrails.
package model
