package mobility

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
)

var (
	// ErrInvalidMode is returned for an unknown random walk mode.
	ErrInvalidMode = errors.New("invalid walk mode")
	// ErrInvalidTimeStep is returned when a time window is not positive.
	ErrInvalidTimeStep = errors.New("time step must be positive")
	// ErrInvalidDistance is returned when the walk distance is not positive.
	ErrInvalidDistance = errors.New("walk distance must be positive")
	// ErrNegativeSample is returned when a speed or pause variable can yield
	// negative values.
	ErrNegativeSample = errors.New("variable must not yield negative values")
	// ErrInvalidAlpha is returned when the Gauss-Markov alpha is outside [0, 1].
	ErrInvalidAlpha = errors.New("alpha must lie in [0, 1]")
	// ErrOutsideBounds is returned when a position lies outside the bounds.
	ErrOutsideBounds = errors.New("position outside bounds")
	// ErrInsideObstacle is returned when a position lies inside an obstacle.
	ErrInsideObstacle = errors.New("position inside obstacle")
)

// WalkMode selects what ends a random walk leg.
type WalkMode int

const (
	// ModeDistance changes course after a fixed distance.
	ModeDistance WalkMode = iota
	// ModeTime changes course after a fixed time.
	ModeTime
)

func (m WalkMode) String() string {
	switch m {
	case ModeDistance:
		return "Distance"
	case ModeTime:
		return "Time"
	default:
		return fmt.Sprintf("WalkMode(%d)", int(m))
	}
}

// ParseWalkMode accepts "Distance" or "Time", case-insensitively.
func ParseWalkMode(s string) (WalkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distance":
		return ModeDistance, nil
	case "time":
		return ModeTime, nil
	}
	return 0, fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m WalkMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *WalkMode) UnmarshalText(text []byte) error {
	parsed, err := ParseWalkMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RandomWalkConfig configures a RandomWalk.
type RandomWalkConfig struct {
	Bounds core.Box `yaml:"bounds"`
	// Mode selects whether Time or Distance ends a leg.
	Mode WalkMode `yaml:"mode"`
	// Time is the leg duration in ModeTime.
	Time time.Duration `yaml:"time"`
	// Distance is the leg length in ModeDistance.
	Distance  float64      `yaml:"distance"`
	Direction randvar.Spec `yaml:"direction"`
	Pitch     randvar.Spec `yaml:"pitch"`
	Speed     randvar.Spec `yaml:"speed"`
}

// DefaultRandomWalkConfig returns the stock random walk parameters.
func DefaultRandomWalkConfig() RandomWalkConfig {
	return RandomWalkConfig{
		Bounds:    core.NewBox(0, 100, 0, 100, 0, 100),
		Mode:      ModeDistance,
		Time:      time.Second,
		Distance:  1.0,
		Direction: randvar.UniformSpec(0, 6.283184),
		Pitch:     randvar.UniformSpec(0, 3.141592),
		Speed:     randvar.UniformSpec(2, 4),
	}
}

// Validate checks the configuration once, before a policy is built.
func (c RandomWalkConfig) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	switch c.Mode {
	case ModeDistance:
		if !(c.Distance > 0) {
			return fmt.Errorf("%w: %v", ErrInvalidDistance, c.Distance)
		}
		// Time still bounds legs driven at zero speed.
		if c.Time <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidTimeStep, c.Time)
		}
	case ModeTime:
		if c.Time <= 0 {
			return fmt.Errorf("%w: %v", ErrInvalidTimeStep, c.Time)
		}
	default:
		return fmt.Errorf("%w: %v", ErrInvalidMode, c.Mode)
	}
	if err := validateSpecs(
		namedSpec{"direction", c.Direction},
		namedSpec{"pitch", c.Pitch},
		namedSpec{"speed", c.Speed},
	); err != nil {
		return err
	}
	if !c.Speed.NonNegative() {
		return fmt.Errorf("speed %v: %w", c.Speed, ErrNegativeSample)
	}
	return nil
}

// RandomDirectionConfig configures a RandomDirection.
type RandomDirectionConfig struct {
	Bounds core.Box     `yaml:"bounds"`
	Speed  randvar.Spec `yaml:"speed"`
	// Pause is the rest time in seconds at every wall or obstacle.
	Pause randvar.Spec `yaml:"pause"`
}

// DefaultRandomDirectionConfig returns the stock random direction parameters.
func DefaultRandomDirectionConfig() RandomDirectionConfig {
	return RandomDirectionConfig{
		Bounds: core.NewBox(-100, 100, -100, 100, 0, 100),
		Speed:  randvar.UniformSpec(1, 2),
		Pause:  randvar.ConstantSpec(2),
	}
}

// Validate checks the configuration once, before a policy is built.
func (c RandomDirectionConfig) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if err := validateSpecs(namedSpec{"speed", c.Speed}, namedSpec{"pause", c.Pause}); err != nil {
		return err
	}
	if !c.Speed.NonNegative() {
		return fmt.Errorf("speed %v: %w", c.Speed, ErrNegativeSample)
	}
	if !c.Pause.NonNegative() {
		return fmt.Errorf("pause %v: %w", c.Pause, ErrNegativeSample)
	}
	return nil
}

// GaussMarkovConfig configures a GaussMarkov.
type GaussMarkovConfig struct {
	Bounds   core.Box      `yaml:"bounds"`
	TimeStep time.Duration `yaml:"time_step"`
	// Alpha weights memory against the mean: 1 keeps the current velocity
	// forever, 0 makes every step independent.
	Alpha float64 `yaml:"alpha"`

	MeanVelocity  randvar.Spec `yaml:"mean_velocity"`
	MeanDirection randvar.Spec `yaml:"mean_direction"`
	MeanPitch     randvar.Spec `yaml:"mean_pitch"`

	NormalVelocity  randvar.Spec `yaml:"normal_velocity"`
	NormalDirection randvar.Spec `yaml:"normal_direction"`
	NormalPitch     randvar.Spec `yaml:"normal_pitch"`
}

// DefaultGaussMarkovConfig returns the stock Gauss-Markov parameters.
func DefaultGaussMarkovConfig() GaussMarkovConfig {
	return GaussMarkovConfig{
		Bounds:          core.NewBox(-100, 100, -100, 100, 0, 100),
		TimeStep:        time.Second,
		Alpha:           1.0,
		MeanVelocity:    randvar.UniformSpec(0, 1),
		MeanDirection:   randvar.UniformSpec(0, 6.283185307),
		MeanPitch:       randvar.ConstantSpec(0),
		NormalVelocity:  randvar.NormalSpec(0, 1, 10),
		NormalDirection: randvar.NormalSpec(0, 1, 10),
		NormalPitch:     randvar.NormalSpec(0, 1, 10),
	}
}

// Validate checks the configuration once, before a policy is built.
func (c GaussMarkovConfig) Validate() error {
	if err := c.Bounds.Validate(); err != nil {
		return err
	}
	if c.TimeStep <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeStep, c.TimeStep)
	}
	if math.IsNaN(c.Alpha) || c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidAlpha, c.Alpha)
	}
	return validateSpecs(
		namedSpec{"mean_velocity", c.MeanVelocity},
		namedSpec{"mean_direction", c.MeanDirection},
		namedSpec{"mean_pitch", c.MeanPitch},
		namedSpec{"normal_velocity", c.NormalVelocity},
		namedSpec{"normal_direction", c.NormalDirection},
		namedSpec{"normal_pitch", c.NormalPitch},
	)
}

type namedSpec struct {
	name string
	spec randvar.Spec
}

// validateSpecs validates every spec and joins the failures in the order
// given.
func validateSpecs(specs ...namedSpec) error {
	var errs []error
	for _, s := range specs {
		if err := s.spec.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func buildVariables(specs ...randvar.Spec) ([]randvar.Variable, error) {
	vars := make([]randvar.Variable, len(specs))
	for i, s := range specs {
		v, err := s.Build()
		if err != nil {
			return nil, err
		}
		vars[i] = v
	}
	return vars, nil
}
