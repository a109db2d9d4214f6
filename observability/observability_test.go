package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestFieldConstructors(t *testing.T) {
	if f := String("a", "b"); f.Key() != "a" || f.Value() != "b" {
		t.Errorf("String field: %v=%v", f.Key(), f.Value())
	}
	if f := Int("n", 7); f.Value() != 7 {
		t.Errorf("Int field: %v", f.Value())
	}
	if f := Int64("n64", 9); f.Value() != int64(9) {
		t.Errorf("Int64 field: %v", f.Value())
	}
}

func TestSlogLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	l.With(String("component", "export")).Info("annotations written", Int("count", 3))
	out := buf.String()
	if !strings.Contains(out, "annotations written") {
		t.Errorf("message missing: %q", out)
	}
	if !strings.Contains(out, "component=export") || !strings.Contains(out, "count=3") {
		t.Errorf("fields missing: %q", out)
	}
}
