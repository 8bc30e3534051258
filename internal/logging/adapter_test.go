package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewSlogAdapter_WithNil(t *testing.T) {
	adapter := NewSlogAdapter(nil)
	if adapter == nil {
		t.Fatal("NewSlogAdapter returned nil")
	}
	if adapter.logger == nil {
		t.Error("adapter.logger should not be nil when created with nil")
	}
}

func TestSlogAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(NewLogger(&buf, true))

	adapter.Debug("debug message", KeyPath, "/a")
	adapter.Info("info message", KeyPath, "/b")
	adapter.Warn("warn message", KeyPath, "/c")
	adapter.Error("error message", KeyPath, "/d")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=\"debug message\" path=/a",
		"level=INFO msg=\"info message\" path=/b",
		"level=WARN msg=\"warn message\" path=/c",
		"level=ERROR msg=\"error message\" path=/d",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(NewLogger(&buf, false)).With(KeyBatchID, "b-1")

	adapter.Info("batch finished")

	if !strings.Contains(buf.String(), "batch_id=b-1") {
		t.Errorf("expected batch_id in output, got %q", buf.String())
	}
}

func TestSlogAdapter_Logger(t *testing.T) {
	logger := slog.Default()
	adapter := NewSlogAdapter(logger)
	if adapter.Logger() != logger {
		t.Error("Logger() should return the underlying logger")
	}
}

func TestDefaultLogger(t *testing.T) {
	adapter := DefaultLogger()
	if adapter == nil {
		t.Fatal("DefaultLogger returned nil")
	}
	if adapter.logger == nil {
		t.Error("DefaultLogger().logger should not be nil")
	}
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
}
