package track

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSlogLoggerWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := SlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.LogDiagnostic(Diagnostic{
		Op:       OpPersist,
		TypeName: "Window",
		Property: "Width",
		Key:      "Window_main.Width",
		Level:    slog.LevelWarn,
		Err:      errBackend,
	})

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":    "WARN",
		"msg":      "track: property persist skipped",
		"op":       "persist",
		"type":     "Window",
		"property": "Width",
		"key":      "Window_main.Width",
		"error":    "backend unavailable",
	}
	for k, v := range want {
		if record[k] != v {
			t.Fatalf("expected %s=%v, got %v", k, v, record[k])
		}
	}
}

func TestSlogLoggerOmitsNilError(t *testing.T) {
	var buf bytes.Buffer
	SlogLogger(slog.New(slog.NewJSONHandler(&buf, nil))).LogDiagnostic(Diagnostic{Op: OpApply, Level: slog.LevelInfo})
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := record["error"]; ok {
		t.Fatalf("expected no error attribute")
	}
}

func TestLoggerFuncAndNop(t *testing.T) {
	var seen []Diagnostic
	var logger Logger = LoggerFunc(func(d Diagnostic) { seen = append(seen, d) })
	logger.LogDiagnostic(Diagnostic{Op: OpClear})
	if len(seen) != 1 || seen[0].Op != OpClear {
		t.Fatalf("expected diagnostic forwarded, got %v", seen)
	}

	var nilFunc LoggerFunc
	nilFunc.LogDiagnostic(Diagnostic{})
	NopLogger().LogDiagnostic(Diagnostic{})
}

func TestWithNilLoggerDiscards(t *testing.T) {
	cfg, err := NewConfiguration(newWindow("main"), newMemStore(), WithLogger(nil))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := cfg.logger().(noopLogger); !ok {
		t.Fatalf("expected nop logger, got %T", cfg.logger())
	}
}
