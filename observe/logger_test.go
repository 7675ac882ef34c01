package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug msg")
	logger.Info(ctx, "info msg")
	logger.Warn(ctx, "warn msg")
	logger.Error(ctx, "error msg")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("levels = %v, %v; want warn, error", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "probe failed",
		Field{Key: "service", Value: "datastore"},
		Field{Key: "consecutive_failures", Value: 3},
	)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry["msg"] != "probe failed" {
		t.Errorf("msg = %v, want 'probe failed'", entry["msg"])
	}
	if entry["service"] != "datastore" {
		t.Errorf("service = %v, want datastore", entry["service"])
	}
	if entry["consecutive_failures"] != float64(3) {
		t.Errorf("consecutive_failures = %v, want 3", entry["consecutive_failures"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	scoped := logger.With(Field{Key: "component", Value: "availability"})
	scoped.Info(context.Background(), "check complete")

	// The parent logger is unaffected.
	logger.Info(context.Background(), "plain")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["component"] != "availability" {
		t.Errorf("scoped component = %v, want availability", entries[0]["component"])
	}
	if _, ok := entries[1]["component"]; ok {
		t.Error("parent logger inherited scoped field")
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "auth probe",
		Field{Key: "token", Value: "super-secret"},
		Field{Key: "service", Value: "auth"},
	)

	entries := decodeEntries(t, &buf)
	if entries[0]["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entries[0]["token"])
	}
	if entries[0]["service"] != "auth" {
		t.Errorf("service = %v, want auth", entries[0]["service"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
