package internode

import (
	"log/slog"
	"testing"
)

func TestLogger_SlogSatisfiesInterface(t *testing.T) {
	// *slog.Logger must satisfy Logger without an adapter.
	var _ Logger = slog.Default()
}

func TestDefaultLogger(t *testing.T) {
	logger := defaultLogger()
	if logger == nil {
		t.Fatal("defaultLogger returned nil")
	}
	if logger != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

// mockLogger records whether each level was hit, for option wiring tests.
type mockLogger struct {
	debugCalled bool
	infoCalled  bool
	warnCalled  bool
	errorCalled bool
	lastMsg     string
	lastArgs    []any
}

func (l *mockLogger) Debug(msg string, args ...any) {
	l.debugCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Info(msg string, args ...any) {
	l.infoCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.warnCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.errorCalled = true
	l.lastMsg = msg
	l.lastArgs = args
}

func TestLogger_CustomImplementation(t *testing.T) {
	mock := &mockLogger{}
	var logger Logger = mock

	logger.Debug("decode error", "peer", "10.0.0.5:7000")
	if !mock.debugCalled {
		t.Error("Debug not called")
	}
	if mock.lastMsg != "decode error" {
		t.Errorf("lastMsg = %q, want %q", mock.lastMsg, "decode error")
	}

	logger.Info("connection established")
	logger.Warn("slow consumer")
	logger.Error("accept error")
	if !mock.infoCalled || !mock.warnCalled || !mock.errorCalled {
		t.Error("not every level reached the implementation")
	}
}

// pairLogger consumes args the way structured backends do, as alternating
// key/value pairs. It mirrors the zerolog adapter in example/.
type pairLogger struct {
	fields map[string]any
}

func (l *pairLogger) record(args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		l.fields[key] = args[i+1]
	}
}

func (l *pairLogger) Debug(msg string, args ...any) { l.record(args) }
func (l *pairLogger) Info(msg string, args ...any)  { l.record(args) }
func (l *pairLogger) Warn(msg string, args ...any)  { l.record(args) }
func (l *pairLogger) Error(msg string, args ...any) { l.record(args) }

func TestLogger_KeyValuePairs(t *testing.T) {
	pl := &pairLogger{fields: make(map[string]any)}
	var logger Logger = pl

	logger.Info("message received", "verb", "WRITE", "id", uint32(42))

	if got := pl.fields["verb"]; got != "WRITE" {
		t.Errorf("fields[verb] = %v, want WRITE", got)
	}
	if got := pl.fields["id"]; got != uint32(42) {
		t.Errorf("fields[id] = %v, want 42", got)
	}

	// A dangling trailing value has no key and is dropped, not paired with
	// the previous value.
	pl.fields = make(map[string]any)
	logger.Debug("connection options", "peer", "10.0.0.5:7000", "orphan")
	if len(pl.fields) != 1 {
		t.Errorf("fields = %v, want only the complete pair", pl.fields)
	}

	// Non-string keys are skipped the way the adapters skip them.
	pl.fields = make(map[string]any)
	logger.Warn("odd args", 7, "value", "kept", true)
	if _, ok := pl.fields["kept"]; !ok || len(pl.fields) != 1 {
		t.Errorf("fields = %v, want only the string-keyed pair", pl.fields)
	}
}
