package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStandardLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelDebug))

	testCases := []struct {
		logf  func(string, ...interface{})
		label string
	}{
		{logger.Debug, "[DEBUG]"},
		{logger.Info, "[INFO]"},
		{logger.Warn, "[WARN]"},
		{logger.Error, "[ERROR]"},
	}

	for _, tc := range testCases {
		tc.logf("block %d freed", 4)
		out := buf.String()
		if !strings.Contains(out, tc.label) || !strings.Contains(out, "block 4 freed") {
			t.Errorf("expected %s entry, got: %s", tc.label, out)
		}
		buf.Reset()
	}

	logger.SetLevel(LevelWarn)
	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warn")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible warn") {
		t.Errorf("level filtering failed, got: %s", out)
	}
	if logger.GetLevel() != LevelWarn {
		t.Errorf("expected LevelWarn, got %v", logger.GetLevel())
	}
}

func TestStandardLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	logger := NewStandardLogger(
		WithOutput(&buf),
		WithClock(func() time.Time { return fixed }),
		WithInitialFields(map[string]interface{}{"component": "session"}),
	)

	logger.WithFields(map[string]interface{}{
		"owner": "P1",
		"block": 1,
	}).Info("allocated")

	want := "[2024-01-02 03:04:05.000] [INFO] block=1 component=session owner=P1 allocated\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
	buf.Reset()

	// parent is unaffected by the child's fields
	logger.Info("plain")
	if strings.Contains(buf.String(), "owner=") {
		t.Errorf("child fields leaked into parent: %s", buf.String())
	}
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	logger := NewStandardLogger(WithOutput(&buf), WithExitFunc(func(c int) { code = c }))

	logger.WithField("stage", "startup").Fatal("cannot build table")
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] stage=startup cannot build table") {
		t.Errorf("unexpected fatal output: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]Level{
		"debug":   LevelDebug,
		"":        LevelInfo,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" warn ":  LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
	}
	for in, want := range testCases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Errorf("expected error for unknown level")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Error("dropped")
	logger.WithField("k", "v").Warn("dropped")
}

func TestDefaultLogger(t *testing.T) {
	original := defaultLogger
	defer func() {
		defaultLogger = original
	}()

	var buf bytes.Buffer
	SetDefaultLogger(NewStandardLogger(WithOutput(&buf), WithLevel(LevelInfo)))

	Info("global info")
	if !strings.Contains(buf.String(), "[INFO] global info") {
		t.Errorf("global info logging failed, got: %s", buf.String())
	}
	buf.Reset()

	WithField("global", true).Warn("global with field")
	if !strings.Contains(buf.String(), "[WARN] global=true global with field") {
		t.Errorf("global logging with field failed, got: %s", buf.String())
	}
	buf.Reset()

	SetLevel(LevelError)
	Warn("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got: %s", buf.String())
	}
	if GetDefaultLogger().GetLevel() != LevelError {
		t.Errorf("SetLevel did not apply to default logger")
	}
}
