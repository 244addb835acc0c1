package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("hidden")
	logger.WithField("task", 7).Warn("shown")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single json entry, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "shown" || entry["task"] != float64(7) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewDebugOverridesLevel(t *testing.T) {
	logger, err := New(Options{Level: "error", Debug: true, Format: "text"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %v", logger.GetLevel())
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDebugFromEnv(t *testing.T) {
	t.Setenv("DEBUG", "true")
	if !DebugFromEnv() {
		t.Fatal("expected debug from env")
	}
	t.Setenv("DEBUG", "nope")
	if DebugFromEnv() {
		t.Fatal("unexpected debug for invalid value")
	}
}
