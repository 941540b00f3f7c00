package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("job submitted", String(FieldItemID, "42"), String(FieldStatus, "processing"))

	out := buf.String()
	if !strings.Contains(out, "job submitted") {
		t.Fatalf("missing message in %q", out)
	}
	if !strings.Contains(out, "item_id=42") {
		t.Fatalf("missing item_id attr in %q", out)
	}
	if !strings.Contains(out, "status=processing") {
		t.Fatalf("missing status attr in %q", out)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record should pass: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNoopHandlerDropsEverything(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled")
	}
	logger.Error("ignored")
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, lvl))

	NewComponentLogger(base, "queue").Info("ready")
	if !strings.Contains(buf.String(), "component=queue") {
		t.Fatalf("missing component attr in %q", buf.String())
	}
}
