package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// setupTestLogger configures a logger with a custom writer for tests
func setupTestLogger(output *bytes.Buffer, level string) {
	logger := zerolog.New(output).With().Timestamp().Logger().Level(parseLevel(level))
	SetLoggerForTest(logger)
}

func TestInfoLogging(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "info")

	Info("test message", "foo", 42, "bar", true)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "test message") {
		t.Error("Expected log message not found in output")
	}
	if !strings.Contains(logOutput, `"foo":42`) || !strings.Contains(logOutput, `"bar":true`) {
		t.Error("Expected key-value pairs not found in output")
	}
}

func TestErrorLoggingWithErrValue(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "error")

	Error("error occurred", "error", errors.New("disk full"), "dangling")

	out := buf.String()
	if !strings.Contains(out, "error occurred") || !strings.Contains(out, `"error":"disk full"`) {
		t.Errorf("Error log output missing expected content: %s", out)
	}
	if strings.Contains(out, "dangling") {
		t.Errorf("dangling key should be dropped: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	Debug("debug hidden")
	Info("info hidden")
	Warn("something odd", "code", 99)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("messages below warn should be filtered: %s", out)
	}
	if !strings.Contains(out, "something odd") || !strings.Contains(out, `"code":99`) {
		t.Error("Warn log output missing expected content")
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	setupTestLogger(&buf, "warn")

	SetLogLevel("info")
	Info("should be visible")

	if !strings.Contains(buf.String(), "should be visible") {
		t.Error("Expected info log after SetLogLevel not found")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("nonsense"); got != zerolog.InfoLevel {
		t.Fatalf("expected info, got %v", got)
	}
	if got := parseLevel(""); got != zerolog.InfoLevel {
		t.Fatalf("expected info for empty level, got %v", got)
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "svc.log")
	InitLogger(file, 1, 1, 1, false)
	defer SetLoggerForTest(zerolog.New(os.Stdout))

	Info("to file", "k", "v")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"service":"pdf-generator"`) || !strings.Contains(string(data), "to file") {
		t.Fatalf("unexpected log file content: %s", data)
	}
}
