package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithAttrsOverridesByKey(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("component", "a"), slog.String("source", "x"))
	ctx = WithComponent(ctx, "b")

	attrs := Attrs(ctx)
	if len(attrs) != 2 {
		t.Fatalf("Attrs() len = %d, want 2", len(attrs))
	}
	if attrs[0].Key != "component" || attrs[0].Value.String() != "b" {
		t.Fatalf("Attrs()[0] = %v, want component=b", attrs[0])
	}
}

func TestLoggerWritesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "debug", "text"))
	ctx = WithComponent(ctx, "ingest.pipeline")

	Debug(ctx, "record loaded", slog.Int("n", 3))

	out := buf.String()
	if !strings.Contains(out, "component=ingest.pipeline") || !strings.Contains(out, "n=3") {
		t.Fatalf("log output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARN") != slog.LevelWarn || ParseLevel("nope") != slog.LevelInfo {
		t.Fatalf("ParseLevel() mismatch")
	}
}
