package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/trace"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-duration", "30s", "-run", "4", "-trace", "out.csv"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.duration != 30*time.Second || opts.run != 4 || opts.tracePath != "out.csv" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if _, err := parseFlags([]string{"-duration", "-5s"}); err == nil {
		t.Fatalf("expected an error for a negative duration")
	}
	if _, err := parseFlags([]string{"-realtime", "-tick", "0s"}); err == nil {
		t.Fatalf("expected an error for a zero tick in real-time mode")
	}
}

func TestRunDemoScenario(t *testing.T) {
	var out bytes.Buffer
	opts := options{duration: 20 * time.Second}
	if err := run(context.Background(), opts, &out, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	summary := out.String()
	if !strings.Contains(summary, `Simulated 20s of "demo"`) {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
	for _, id := range []string{"rw-0", "rd-1", "gm-1"} {
		if !strings.Contains(summary, id) {
			t.Fatalf("summary misses node %s:\n%s", id, summary)
		}
	}
}

func TestRunWritesTrace(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "s.yaml")
	doc := `
name: tiny
seed: 3
bounds: "0|10|0|10|0|10"
groups:
  - name: n
    count: 2
    policy: random-walk
    params:
      mode: Time
      time: 1s
`
	if err := os.WriteFile(scenarioPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	tracePath := filepath.Join(dir, "trace.csv")

	var out bytes.Buffer
	opts := options{scenarioPath: scenarioPath, duration: 5 * time.Second, tracePath: tracePath}
	if err := run(context.Background(), opts, &out, logging.Noop()); err != nil {
		t.Fatalf("run: %v", err)
	}

	fh, err := os.Open(tracePath)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer fh.Close()
	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if strings.Join(records[0], ",") != strings.Join(trace.Header, ",") {
		t.Fatalf("header = %v", records[0])
	}
	// Two nodes, a leg per second from t=0 through t=5, plus rebounds.
	if got := len(records) - 1; got < 12 {
		t.Fatalf("trace rows = %d, want at least 12", got)
	}
	for i, r := range records[1:] {
		if len(r) != len(trace.Header) || (r[1] != "n-0" && r[1] != "n-1") {
			t.Fatalf("row %d malformed: %v", i, r)
		}
	}
}

func TestRunRejectsMissingScenario(t *testing.T) {
	opts := options{scenarioPath: filepath.Join(t.TempDir(), "missing.yaml")}
	if err := run(context.Background(), opts, &bytes.Buffer{}, logging.Noop()); err == nil {
		t.Fatalf("expected an error for a missing scenario file")
	}
}
