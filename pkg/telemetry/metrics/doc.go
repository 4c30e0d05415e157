// Package metrics exposes Prometheus metrics for the guardrail engine:
// per-policy evaluation counts and latency, blocked outcomes by phase and
// severity, retry attempts, replacements, and stream terminations.
package metrics
