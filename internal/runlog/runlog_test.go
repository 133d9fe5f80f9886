package runlog

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileName(t *testing.T) {
	start := time.Unix(1718000000, 0)
	if got := FileName(start); got != "serial_log_1718000000.log" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestOpenWritesJSONLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Unix(1718000000, 0)

	l, err := Open(Options{Dir: dir, RunID: "run-1", Start: start})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if l.Path != filepath.Join(dir, "serial_log_1718000000.log") {
		t.Errorf("Path = %q", l.Path)
	}

	l.Info().Str("command", "ls").Msg("running command")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, data)
	}
	for key, want := range map[string]string{"run_id": "run-1", "command": "ls", "message": "running command", "level": "info"} {
		if entry[key] != want {
			t.Errorf("%s = %v, expected %q", key, entry[key], want)
		}
	}
}

func TestOpenVerboseMirrorsToStderr(t *testing.T) {
	var stderr bytes.Buffer
	l, err := Open(Options{Dir: t.TempDir(), Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer l.Close()

	l.Warn().Msg("attempting to reopen serial port")
	if !strings.Contains(stderr.String(), "attempting to reopen serial port") {
		t.Errorf("stderr = %q, expected the message", stderr.String())
	}
}

func TestOpenFailsOnFileAsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(Options{Dir: file}); err == nil {
		t.Error("Expected error when log dir is a file")
	}
}
