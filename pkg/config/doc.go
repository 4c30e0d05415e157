// Package config loads and validates Callisto's YAML configuration: the
// guardrail pipelines (policies, gate, retry, streaming) plus logging,
// tracing, metrics, and evidence settings. A file watcher supports hot
// reloading the pipeline without restarting the host process.
package config
