// Package scenario loads YAML scenario files and turns them into a running
// simulation: node groups driven by mobility policies on one event
// scheduler, feeding a knowledge base.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/model"
)

var (
	// ErrInvalidScenario wraps every structural problem found by Validate.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrNoFreePosition is returned when an allocator cannot find a point
	// outside every obstacle.
	ErrNoFreePosition = errors.New("no free initial position")
)

// File is the YAML document describing a scenario.
type File struct {
	Name string `yaml:"name"`
	// Seed and Run select the random streams. Changing Run gives an
	// independent replication of the same scenario.
	Seed     uint64        `yaml:"seed"`
	Run      uint64        `yaml:"run"`
	Duration time.Duration `yaml:"duration"`

	Bounds    core.Box   `yaml:"bounds"`
	Obstacles []Obstacle `yaml:"obstacles"`
	Groups    []Group    `yaml:"groups"`
}

// Obstacle is either a box or a rectangle footprint extruded from ZMin by
// Height.
type Obstacle struct {
	Box       *core.Box       `yaml:"box,omitempty"`
	Footprint *core.Rectangle `yaml:"footprint,omitempty"`
	ZMin      float64         `yaml:"z_min,omitempty"`
	Height    float64         `yaml:"height,omitempty"`
}

// Resolve returns the obstacle as a box.
func (o Obstacle) Resolve() (core.Box, error) {
	switch {
	case o.Box != nil && o.Footprint != nil:
		return core.Box{}, fmt.Errorf("obstacle sets both box and footprint")
	case o.Box != nil:
		return *o.Box, o.Box.Validate()
	case o.Footprint != nil:
		if err := o.Footprint.Validate(); err != nil {
			return core.Box{}, err
		}
		if !(o.Height > 0) {
			return core.Box{}, fmt.Errorf("footprint %s needs a positive height, got %v", o.Footprint, o.Height)
		}
		return o.Footprint.Extrude(o.ZMin, o.ZMin+o.Height), nil
	default:
		return core.Box{}, fmt.Errorf("obstacle sets neither box nor footprint")
	}
}

// Group is a set of nodes sharing a policy and its parameters.
type Group struct {
	// Name prefixes node IDs (name-0, name-1, ...). Nodes of an unnamed
	// group get generated IDs.
	Name   string           `yaml:"name"`
	Count  int              `yaml:"count"`
	Policy model.PolicyKind `yaml:"policy"`
	// Initial is the box initial positions are drawn from. It defaults to
	// the policy bounds.
	Initial *core.Box `yaml:"initial,omitempty"`
	// Params overrides fields of the policy's default configuration. The
	// scenario bounds apply unless Params sets its own.
	Params yaml.Node `yaml:"params,omitempty"`
}

// decodeParams overlays the group's params onto into. Unknown keys are
// rejected like they are in the rest of the document.
func (g Group) decodeParams(into any) error {
	if g.Params.Kind == 0 {
		return nil
	}
	raw, err := yaml.Marshal(&g.Params)
	if err != nil {
		return fmt.Errorf("group %q params: %w", g.Name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("group %q params: %w", g.Name, err)
	}
	return nil
}

// Load decodes a scenario from r and validates it.
func Load(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Validate checks the parts of the scenario that do not depend on policy
// parameters. Policy configurations are validated when they are built.
func (f *File) Validate() error {
	var errs []error
	if err := f.Bounds.Validate(); err != nil {
		errs = append(errs, err)
	}
	if f.Duration < 0 {
		errs = append(errs, fmt.Errorf("negative duration %v", f.Duration))
	}
	for i, o := range f.Obstacles {
		b, err := o.Resolve()
		if err != nil {
			errs = append(errs, fmt.Errorf("obstacle %d: %w", i, err))
			continue
		}
		if !f.Bounds.Contains(b) {
			errs = append(errs, fmt.Errorf("obstacle %d (%s) is not within bounds %s", i, b, f.Bounds))
		}
	}
	if len(f.Groups) == 0 {
		errs = append(errs, fmt.Errorf("no node groups"))
	}
	for i, g := range f.Groups {
		if g.Count <= 0 {
			errs = append(errs, fmt.Errorf("group %d (%q): count must be positive, got %d", i, g.Name, g.Count))
		}
		if _, err := model.ParsePolicyKind(string(g.Policy)); err != nil {
			errs = append(errs, fmt.Errorf("group %d (%q): %w", i, g.Name, err))
		}
		if g.Initial != nil {
			if err := g.Initial.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("group %d (%q) initial: %w", i, g.Name, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, errors.Join(errs...))
	}
	return nil
}

// ObstacleBoxes resolves every obstacle. The file must be valid.
func (f *File) ObstacleBoxes() []core.Box {
	boxes := make([]core.Box, 0, len(f.Obstacles))
	for _, o := range f.Obstacles {
		if b, err := o.Resolve(); err == nil {
			boxes = append(boxes, b)
		}
	}
	return boxes
}

// NodeCount returns the total number of nodes across groups.
func (f *File) NodeCount() int {
	n := 0
	for _, g := range f.Groups {
		n += g.Count
	}
	return n
}
