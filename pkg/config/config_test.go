package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/guardrail"
)

const sampleConfig = `
logging:
  level: debug
  format: text

guardrails:
  executor:
    default_timeout: 2s
    parallelism: 4
  gate:
    throw_on_blocked: true
    replace_on_blocked: false
  retry:
    enabled: true
    max_retries: 3
    backoff: constant
    interval: 100ms
  stream:
    mode: progressive
    checkpoint_bytes: 256
    stop_after_violations: 2
  policies:
    - type: keyword
      name: banned-terms
      flavor: input
      keywords: ["password", "secret"]
      severity: high
    - type: regexp
      name: ssn
      flavor: output
      patterns: ['\b\d{3}-\d{2}-\d{4}\b']
      severity: critical
    - type: length
      name: prompt-cap
      flavor: input
      max_chars: 4000
    - type: ratelimit
      name: per-user
      limit: 60
      window: 1m

evidence:
  enabled: true
  retention:
    period: 168h
    schedule: "30 2 * * *"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callisto.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	exec := cfg.Guardrails.ExecutorConfig()
	if exec.DefaultTimeout != 2*time.Second {
		t.Errorf("DefaultTimeout = %v", exec.DefaultTimeout)
	}
	if exec.Parallelism != 4 {
		t.Errorf("Parallelism = %d", exec.Parallelism)
	}

	if !cfg.Guardrails.Retry.Enabled || cfg.Guardrails.Retry.MaxRetries != 3 {
		t.Errorf("Retry = %+v", cfg.Guardrails.Retry)
	}
	if cfg.Guardrails.Retry.Interval.Std() != 100*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Guardrails.Retry.Interval.Std())
	}

	sc := cfg.Guardrails.StreamConfig()
	if sc.CheckpointBytes != 256 || sc.StopAfterViolations != 2 {
		t.Errorf("Stream = %+v", sc)
	}

	input, output, err := cfg.Guardrails.BuildPolicies()
	if err != nil {
		t.Fatalf("BuildPolicies failed: %v", err)
	}
	if len(input) != 3 {
		t.Errorf("Expected 3 input policies, got %d", len(input))
	}
	if len(output) != 1 {
		t.Errorf("Expected 1 output policy, got %d", len(output))
	}
	if input[0].Name() != "banned-terms" || input[0].Flavor() != guardrail.FlavorInput {
		t.Errorf("Unexpected first input policy: %s/%s", input[0].Name(), input[0].Flavor())
	}

	if !cfg.Evidence.Enabled {
		t.Error("Evidence should be enabled")
	}
	ret := cfg.Evidence.RetentionConfig()
	if ret.Period != 168*time.Hour || ret.Schedule != "30 2 * * *" {
		t.Errorf("Retention = %+v", ret)
	}
}

func TestLoad_DefaultsApply(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
	if !cfg.Guardrails.Gate.ThrowOnBlocked {
		t.Error("Default gate must throw on blocked")
	}
	if cfg.Guardrails.Stream.Mode != "progressive" {
		t.Errorf("Default stream mode = %q", cfg.Guardrails.Stream.Mode)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad policy type", "guardrails:\n  policies:\n    - type: telepathy\n"},
		{"bad pattern", "guardrails:\n  policies:\n    - type: regexp\n      patterns: ['([']\n"},
		{"bad duration", "guardrails:\n  executor:\n    default_timeout: fast\n"},
		{"bad stream mode", "guardrails:\n  stream:\n    mode: sometimes\n"},
		{"bad backoff", "guardrails:\n  retry:\n    enabled: true\n    max_retries: 1\n    backoff: quadratic\n"},
		{"retry without budget", "guardrails:\n  retry:\n    enabled: true\n    max_retries: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Expected load to fail")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestGuardrailsConfig_RetryDisabled(t *testing.T) {
	cfg := Default()
	cfg.Guardrails.Retry.Enabled = false
	if rc := cfg.Guardrails.RetryConfig(nil); rc != nil {
		t.Error("Expected nil retry config when disabled")
	}
}
