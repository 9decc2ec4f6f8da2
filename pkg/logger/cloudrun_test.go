package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestCloudRunHandlerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCloudRunHandlerWriter(slog.LevelInfo, &buf)).With("request_id", "r1")

	log.Warn("tool call failed", "tool", "list_projects", "error", errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json line %q: %v", buf.String(), err)
	}
	if entry["severity"] != "WARNING" {
		t.Fatalf("severity mismatch: %v", entry["severity"])
	}
	if entry["message"] != "tool call failed" {
		t.Fatalf("message mismatch: %v", entry["message"])
	}
	data, ok := entry["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", entry["data"])
	}
	if data["request_id"] != "r1" || data["tool"] != "list_projects" || data["error"] != "boom" {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestCloudRunHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCloudRunHandlerWriter(slog.LevelWarn, &buf))

	log.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
}

func TestNewParsesLevel(t *testing.T) {
	log := New("debug", NewTestHandler)
	if log == nil {
		t.Fatalf("expected logger")
	}
	tests := map[string]slog.Level{
		"WARN":     slog.LevelWarn,
		"warning":  slog.LevelWarn,
		" debug ":  slog.LevelDebug,
		"critical": slog.LevelError,
		"":         slog.LevelInfo,
		"nonsense": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
