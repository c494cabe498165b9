package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rsbst23/groundup/pkg/contextkeys"
)

// LogEntry is a decoded slog JSON line. Attributes other than time, level
// and msg are collected in Fields.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Fields = map[string]interface{}{}
	for k, v := range raw {
		switch k {
		case "level":
			e.Level, _ = v.(string)
		case "msg":
			e.Message, _ = v.(string)
		case "time":
		default:
			e.Fields[k] = v
		}
	}
	return nil
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeEntry(t, &buf)
		if entry.Level != "INFO" {
			t.Errorf("Expected level INFO, got %s", entry.Level)
		}
		if entry.Message != "info message" {
			t.Errorf("Expected message 'info message', got %s", entry.Message)
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{"key1": "value1", "key2": 42}).
		WithOperation("inventory.update").
		WithPrincipal(7, 3).
		WithError(errors.New("boom")).
		Warn("denied")

	entry := decodeEntry(t, &buf)
	if entry.Fields["key1"] != "value1" {
		t.Errorf("key1 = %v", entry.Fields["key1"])
	}
	if entry.Fields["key2"] != float64(42) {
		t.Errorf("key2 = %v", entry.Fields["key2"])
	}
	if entry.Fields["operation"] != "inventory.update" {
		t.Errorf("operation = %v", entry.Fields["operation"])
	}
	if entry.Fields["user_id"] != float64(7) || entry.Fields["tenant_id"] != float64(3) {
		t.Errorf("principal fields = %v / %v", entry.Fields["user_id"], entry.Fields["tenant_id"])
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("error = %v", entry.Fields["error"])
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	cases := []struct {
		name string
		log  func()
		want string
	}{
		{"Debugf", func() { logger.Debugf("test %s %d", "string", 42) }, "test string 42"},
		{"Infof", func() { logger.Infof("test %d", 123) }, "test 123"},
		{"Warnf", func() { logger.Warnf("warning %s", "test") }, "warning test"},
		{"Errorf", func() { logger.Errorf("error %v", "test") }, "error test"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tc.log()
			if got := decodeEntry(t, &buf).Message; got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = contextkeys.WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("test message")

	entry := decodeEntry(t, &buf)
	if entry.Fields["request_id"] != "req-123" {
		t.Errorf("Expected request_id 'req-123', got %v", entry.Fields["request_id"])
	}

	if GetLogger(context.Background()) == nil {
		t.Error("GetLogger should fall back to a default logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"nonsense", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if ParseLogLevel(tt.want.String()) != tt.want {
				t.Errorf("String() of %v does not round-trip", tt.want)
			}
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer func() {
			if r := recover(); r != nil {
				RecoverPanic(logger, "unit", r)
			}
		}()
		panic("kaboom")
	}()

	entry := decodeEntry(t, &buf)
	if entry.Message != "PANIC recovered" || entry.Fields["panic"] != "kaboom" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if PanicError(nil) != nil {
		t.Error("PanicError(nil) should be nil")
	}
	sentinel := errors.New("inner")
	if err := PanicError(sentinel); !errors.Is(err, sentinel) {
		t.Errorf("PanicError should wrap error values, got %v", err)
	}
}
