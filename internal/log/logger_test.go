package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)
	logger.Info("hello")

	if got := strings.Count(buf.String(), "component="); got != 1 {
		t.Errorf("component attribute written %d times: %s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "component=http") {
		t.Errorf("missing component: %s", buf.String())
	}

	buf.Reset()
	logger.WithComponent(ComponentWorker).Info("switched")
	if !strings.Contains(buf.String(), "component=worker") || strings.Contains(buf.String(), "component=http") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodGet, "/api/expenses?categoryId=1", nil)
		sl.LogHTTPEnd(context.Background(), r, tt.status, 12, "127.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: want %s in %s", tt.status, tt.level, out)
		}
		if !strings.Contains(out, `query="categoryId=1"`) {
			t.Errorf("status %d: missing query in %s", tt.status, out)
		}
	}
}

func TestLogExpenseMutationAndError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentExpense))

	sl.LogExpenseMutation(context.Background(), OpCreate, 7, 2, 5050, "2024-03-01")
	out := buf.String()
	for _, want := range []string{"Expense created", "expense_id=7", "category_id=2", "amount_cents=5050", "operation=create"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	sl.LogError(context.Background(), "Store failed", errors.New("disk full"), OpList, nil)
	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Errorf("fallback component = %q", got.Component())
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP).With(FieldRequestID, "req-1")
	ctx := NewContext(context.Background(), logger)
	FromContext(ctx).Info("inside")

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("request id not propagated: %s", buf.String())
	}
}
