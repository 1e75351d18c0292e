package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestParseLevel verifies known and unknown level strings.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestLogger_JSONOutput verifies one entry carries the message, level, and
// fields as JSON.
func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info(context.Background(), "collector started", F("interval", "10s"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "collector started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["interval"] != "10s" {
		t.Errorf("interval = %v", entry["interval"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

// TestLogger_LevelFiltering verifies entries below the threshold are
// dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")
	log.Error(context.Background(), "kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if strings.Contains(buf.String(), "dropped") {
		t.Error("filtered entries reached the writer")
	}
}

// TestLogger_WithComponent verifies the component attribute sticks and the
// parent logger stays untouched.
func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	child := log.WithComponent("collector")

	child.Info(context.Background(), "tick")
	log.Info(context.Background(), "parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["component"] != "collector" {
		t.Errorf("child component = %v", first["component"])
	}
	if _, ok := second["component"]; ok {
		t.Error("parent logger inherited the component attribute")
	}
}

// TestNopLogger verifies the no-op logger satisfies the interface and does
// nothing observable.
func TestNopLogger(t *testing.T) {
	var log Logger = NopLogger{}
	log.Info(context.Background(), "ignored", F("k", "v"))
	if child := log.WithComponent("x"); child == nil {
		t.Error("WithComponent returned nil")
	}
}
