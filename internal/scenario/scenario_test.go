package scenario

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/model"
)

func TestLoadFile(t *testing.T) {
	f, err := LoadFile("testdata/campus.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if f.Name != "campus" || f.Seed != 7 || f.Run != 1 {
		t.Fatalf("unexpected header: %+v", f)
	}
	if f.Duration != 2*time.Minute {
		t.Fatalf("duration = %v, want 2m", f.Duration)
	}
	if f.Bounds != core.NewBox(0, 200, 0, 200, 0, 50) {
		t.Fatalf("bounds = %s", f.Bounds)
	}
	if f.NodeCount() != 7 {
		t.Fatalf("NodeCount = %d, want 7", f.NodeCount())
	}
	if f.Groups[0].Policy != model.PolicyRandomWalk || f.Groups[0].Initial == nil {
		t.Fatalf("unexpected first group: %+v", f.Groups[0])
	}

	boxes := f.ObstacleBoxes()
	want := []core.Box{
		core.NewBox(50, 60, 50, 60, 0, 50),
		core.NewBox(100, 120, 20, 40, 0, 30),
	}
	if len(boxes) != len(want) {
		t.Fatalf("obstacles = %v, want %v", boxes, want)
	}
	for i := range want {
		if boxes[i] != want[i] {
			t.Fatalf("obstacle %d = %s, want %s", i, boxes[i], want[i])
		}
	}
}

func TestLoadRejectsInvalidScenarios(t *testing.T) {
	cases := map[string]string{
		"inverted bounds": `
bounds: "10|0|0|10|0|10"
groups: [{name: a, count: 1, policy: random-walk}]
`,
		"unknown policy": `
bounds: "0|10|0|10|0|10"
groups: [{name: a, count: 1, policy: teleport}]
`,
		"zero count": `
bounds: "0|10|0|10|0|10"
groups: [{name: a, count: 0, policy: gauss-markov}]
`,
		"no groups": `
bounds: "0|10|0|10|0|10"
`,
		"obstacle outside bounds": `
bounds: "0|10|0|10|0|10"
obstacles: [{box: "5|20|0|1|0|1"}]
groups: [{name: a, count: 1, policy: random-walk}]
`,
		"footprint without height": `
bounds: "0|10|0|10|0|10"
obstacles: [{footprint: "1|2|1|2"}]
groups: [{name: a, count: 1, policy: random-walk}]
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(doc)); !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("expected ErrInvalidScenario, got %v", err)
			}
		})
	}
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	for name, doc := range map[string]string{
		"malformed box": `bounds: "0|10|0"`,
		"unknown field": "bounds: \"0|10|0|10|0|10\"\nspeed: 3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc))
			if err == nil || errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("expected a decode error, got %v", err)
			}
		})
	}
}

func TestObstacleResolve(t *testing.T) {
	box := core.NewBox(0, 1, 0, 1, 0, 1)
	rect := core.NewRectangle(0, 1, 0, 1)
	if _, err := (Obstacle{Box: &box, Footprint: &rect, Height: 1}).Resolve(); err == nil {
		t.Fatalf("box and footprint together should be rejected")
	}
	if _, err := (Obstacle{}).Resolve(); err == nil {
		t.Fatalf("empty obstacle should be rejected")
	}
	got, err := (Obstacle{Footprint: &rect, ZMin: 2, Height: 3}).Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != core.NewBox(0, 1, 0, 1, 2, 5) {
		t.Fatalf("extruded footprint = %s", got)
	}
}
