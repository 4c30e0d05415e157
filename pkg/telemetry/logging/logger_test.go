package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Writer = &buf

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["key"] != "value" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Level: "debug", Format: "text", Writer: &buf}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("trace me")
	if !strings.Contains(buf.String(), "trace me") {
		t.Errorf("Debug entry missing: %q", buf.String())
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Level: "error", Format: "json", Writer: &buf}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("Info should be filtered at error level: %q", buf.String())
	}
}

func TestNew_InvalidSettings(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestContext_RequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	if got := RequestIDFrom(ctx); got != "req-9" {
		t.Errorf("RequestIDFrom = %q", got)
	}
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Errorf("Expected empty ID, got %q", got)
	}
}

func TestContext_LoggerAnnotation(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := WithLogger(WithRequestID(context.Background(), "req-3"), logger)
	FromContext(ctx).Info("annotated")

	if !strings.Contains(buf.String(), "req-3") {
		t.Errorf("Expected request ID in output: %q", buf.String())
	}
}
