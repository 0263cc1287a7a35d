package logging

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestManager_SetupWritesToFile(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	m.Setup(&buf, "debug", nil)

	m.Logger().Debug("tick complete", "team", "blue")

	out := buf.String()
	if !strings.Contains(out, "tick complete") {
		t.Errorf("expected file output to contain message, got %q", out)
	}
	if !strings.Contains(out, "team=blue") {
		t.Errorf("expected file output to contain attrs, got %q", out)
	}
}

func TestManager_LoggerBeforeSetup(t *testing.T) {
	m := NewManager()
	if m.Logger() == nil {
		t.Fatal("expected a fallback logger before Setup")
	}
	if err := m.Flush(context.Background()); err != nil {
		t.Errorf("Flush without provider should be a no-op, got %v", err)
	}
}

func TestMultiHandler_FanOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		nil,
		slog.NewTextHandler(&b, nil),
	)
	logger := slog.New(h)

	logger.Info("robot lost", "id", 4)

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		if !strings.Contains(buf.String(), "robot lost") {
			t.Errorf("handler %s did not receive the record: %q", name, buf.String())
		}
	}
}

func TestMultiHandler_LevelFiltering(t *testing.T) {
	var quiet, loud bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	logger.Info("snapshot dropped")

	if quiet.Len() != 0 {
		t.Errorf("error-level handler should not have received info record: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "snapshot dropped") {
		t.Errorf("debug-level handler missing record: %q", loud.String())
	}
}

func TestLogFilePath(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	got := LogFilePath("logs", "robocup", at)
	want := filepath.Join("logs", "robocup.20240301_123045.log")
	if got != want {
		t.Errorf("LogFilePath = %q, want %q", got, want)
	}
}
