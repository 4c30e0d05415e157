package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for metric registration.
type Config struct {
	// Namespace is the metric namespace prefix. Default: "callisto".
	Namespace string

	// Subsystem is the metric subsystem. Default: "guardrail".
	Subsystem string
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "callisto",
		Subsystem: "guardrail",
	}
}

// GuardrailMetrics tracks metrics related to guardrail evaluation.
//
// Metrics:
//   - callisto_guardrail_evaluations_total: evaluations by policy and outcome
//   - callisto_guardrail_evaluation_duration_seconds: per-policy latency
//   - callisto_guardrail_blocked_total: non-allowed phase outcomes
//   - callisto_guardrail_retries_total: retry attempts
//   - callisto_guardrail_replacements_total: replaced outcomes
//   - callisto_guardrail_stream_terminations_total: aborted streams
type GuardrailMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	blockedTotal       *prometheus.CounterVec
	retriesTotal       prometheus.Counter
	replacementsTotal  *prometheus.CounterVec
	streamTerminations prometheus.Counter
}

// NewGuardrailMetrics creates and registers guardrail metrics with the
// provided registry.
func NewGuardrailMetrics(cfg *Config, registry *prometheus.Registry) *GuardrailMetrics {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	gm := &GuardrailMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"policy", "triggered"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a single policy evaluation in seconds",
				// Policies range from regex checks (µs) to remote calls (s)
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"policy"},
		),

		blockedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "blocked_total",
				Help:      "Total number of non-allowed phase outcomes",
			},
			[]string{"phase", "outcome", "severity"},
		),

		retriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retries_total",
				Help:      "Total number of regeneration attempts",
			},
		),

		replacementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "replacements_total",
				Help:      "Total number of replaced outcomes",
			},
			[]string{"phase"},
		),

		streamTerminations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_terminations_total",
				Help:      "Total number of streams aborted by the guardrail monitor",
			},
		),
	}

	registry.MustRegister(
		gm.evaluationsTotal,
		gm.evaluationDuration,
		gm.blockedTotal,
		gm.retriesTotal,
		gm.replacementsTotal,
		gm.streamTerminations,
	)

	return gm
}

// RecordEvaluation records one policy evaluation.
func (gm *GuardrailMetrics) RecordEvaluation(policy string, triggered bool, duration time.Duration) {
	label := "false"
	if triggered {
		label = "true"
	}
	gm.evaluationsTotal.WithLabelValues(policy, label).Inc()
	gm.evaluationDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// RecordOutcome records a non-allowed phase outcome.
func (gm *GuardrailMetrics) RecordOutcome(phase, outcome, severity string) {
	gm.blockedTotal.WithLabelValues(phase, outcome, severity).Inc()
}

// RecordRetry records one regeneration attempt.
func (gm *GuardrailMetrics) RecordRetry() {
	gm.retriesTotal.Inc()
}

// RecordReplacement records a replaced outcome.
func (gm *GuardrailMetrics) RecordReplacement(phase string) {
	gm.replacementsTotal.WithLabelValues(phase).Inc()
}

// RecordStreamTermination records an aborted stream.
func (gm *GuardrailMetrics) RecordStreamTermination() {
	gm.streamTerminations.Inc()
}
