package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewWritesJSONToOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	log, err := New(Options{JSON: true, Debug: true, Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("scoring pair", MatchFields("c1", "j1")...)
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, data)
	}
	if entry["step"] != "scoring pair" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry[FieldCandidate] != "c1" {
		t.Fatalf("expected candidate field, got %v", entry)
	}
}

func TestNewInfoLevelDropsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	log, err := New(Options{Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hidden")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output at info level, got %q", data)
	}
}
