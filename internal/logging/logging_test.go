package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.With(String("node", "n1")).Debug(context.Background(), "rebound",
		Int("obstacle", 2),
		Float64("speed", 1.5),
		Duration("remaining", 1500*time.Millisecond),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "rebound" || rec["node"] != "n1" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["obstacle"] != float64(2) || rec["speed"] != 1.5 {
		t.Fatalf("unexpected numeric fields %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn should be written, got %q", buf.String())
	}
}

func TestWithRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, l := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatalf("expected run ID on context")
	}
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("expected logger on context")
	}

	again, sameID := EnsureRunID(ctx)
	if sameID != id || RunIDFromContext(again) != id {
		t.Fatalf("EnsureRunID should keep the existing ID")
	}

	l.Info(ctx, "started")
	if !strings.Contains(buf.String(), id) {
		t.Fatalf("log line should carry run_id %s: %q", id, buf.String())
	}
}

func TestNoop(t *testing.T) {
	l := Noop().With(String("k", "v"))
	l.Error(context.Background(), "dropped")
	ctx, nl := WithRunLogger(context.Background(), nil)
	if nl == nil || RunIDFromContext(ctx) == "" {
		t.Fatalf("nil base logger should fall back to Noop")
	}
}
