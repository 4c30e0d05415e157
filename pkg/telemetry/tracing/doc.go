// Package tracing initializes the OpenTelemetry SDK for Callisto with an
// OTLP/gRPC exporter and ratio-based sampling. The executor and streaming
// monitor emit a span per policy evaluation when a tracer is attached.
package tracing
