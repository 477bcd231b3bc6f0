package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): got %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewAutoUsesJSONForPipes(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, "auto", slog.LevelInfo)
	logger.Info("fetched", "url", "http://example.com/a")
	logger.Debug("hidden")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buffer.String(), err)
	}
	if record["msg"] != "fetched" || record["url"] != "http://example.com/a" {
		t.Fatalf("record: %v", record)
	}
}

func TestNewText(t *testing.T) {
	var buffer bytes.Buffer
	New(&buffer, "text", slog.LevelDebug).Debug("walking", "path", "/out")
	if !strings.Contains(buffer.String(), "msg=walking") {
		t.Fatalf("unexpected text output %q", buffer.String())
	}
}
