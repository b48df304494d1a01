package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_JSONOutputCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(Context{Service: "relay", AppName: "reviews"}, &buf, zapcore.DebugLevel)

	l.Info("dispatch complete", map[string]any{"destinations": 2})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "dispatch complete" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["service"] != "relay" || entry["app_name"] != "reviews" {
		t.Errorf("missing context fields: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["destinations"] != float64(2) {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(Context{}, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestLogger_NilIsSafe(t *testing.T) {
	var l *Logger
	l.Error("nothing", map[string]any{"k": "v"})
	l.Sugar().Warnf("still %s", "nothing")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync on nil logger: %v", err)
	}
}

func TestLogger_WithCoreAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewWithCore(core).With(map[string]any{"destination": "posthog"})

	l.Warn("declined", nil)

	entries := logs.FilterMessage("declined").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["destination"] != "posthog" {
		t.Errorf("context = %v", entries[0].ContextMap())
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var buf bytes.Buffer
	Nop().WithOutput(&buf).Error("boom", nil)
	if !strings.Contains(buf.String(), `"boom"`) {
		t.Errorf("expected redirected output, got %q", buf.String())
	}
}
