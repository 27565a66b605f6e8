package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// logAt dispatches message to the level method named by level.
func logAt(l interface {
	LogTrace(string)
	LogDebug(string)
	LogInfo(string)
	LogWarn(string)
	LogError(string)
}, level, message string) {
	switch level {
	case "trace":
		l.LogTrace(message)
	case "debug":
		l.LogDebug(message)
	case "info":
		l.LogInfo(message)
	case "warn":
		l.LogWarn(message)
	case "error":
		l.LogError(message)
	}
}

// TestLogLevelFiltering verifies each configured level admits exactly the
// message levels at or above it.
func TestLogLevelFiltering(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error"}

	for ci, configured := range levels {
		for mi, message := range levels {
			shouldAppear := mi >= ci
			t.Run(configured+"/"+message, func(t *testing.T) {
				buf := &bytes.Buffer{}
				logAt(NewConsoleLogger(buf, configured), message, message+" msg")

				contains := strings.Contains(buf.String(), message+" msg")
				if shouldAppear && !contains {
					t.Errorf("expected %s message at %s level, output: %q", message, configured, buf.String())
				}
				if !shouldAppear && contains {
					t.Errorf("expected %s message filtered at %s level, output: %q", message, configured, buf.String())
				}
			})
		}
	}
}

func TestSuccessIsInfoLevel(t *testing.T) {
	tests := []struct {
		level        string
		shouldAppear bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			NewConsoleLogger(buf, tt.level).LogSuccess("done")
			if got := strings.Contains(buf.String(), "[SUCCESS] done"); got != tt.shouldAppear {
				t.Errorf("success visible = %v, want %v (output %q)", got, tt.shouldAppear, buf.String())
			}
		})
	}
}

func TestLogLevelEdgeCases(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "info"},
		{"INFO", "info"},
		{"  Debug ", "debug"},
		{"verbose", "info"},
		{"WARN", "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeLogLevel(tt.input); got != tt.expected {
				t.Errorf("normalizeLogLevel(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFileLoggerWithLogLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(dir, "warn")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	logger.LogDebug("debug message")
	logger.LogInfo("info message")
	logger.LogWarn("warn message")
	logger.LogError("error message")

	data, err := os.ReadFile(logger.Path())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	output := string(data)

	for _, filtered := range []string{"debug message", "info message"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered at warn level", filtered)
		}
	}
	for _, kept := range []string{"[WARN] warn message", "[ERROR] error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("expected %q in log file, got %q", kept, output)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(nil) {
		t.Error("nil writer is not a terminal")
	}
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer is not a terminal")
	}
}
