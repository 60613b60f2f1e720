package randvar

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownKind is returned for an unrecognised distribution name.
	ErrUnknownKind = errors.New("unknown random variable kind")
	// ErrInvalidParameters is returned when a distribution's parameters are
	// out of range.
	ErrInvalidParameters = errors.New("invalid random variable parameters")
)

// Kind names a distribution.
type Kind string

const (
	KindUniform  Kind = "uniform"
	KindConstant Kind = "constant"
	KindNormal   Kind = "normal"
)

// Spec describes a random variable in configuration. Only the fields of
// its Kind are read.
type Spec struct {
	Kind Kind `yaml:"kind" json:"kind"`

	Min float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max float64 `yaml:"max,omitempty" json:"max,omitempty"`

	Value float64 `yaml:"value,omitempty" json:"value,omitempty"`

	Mean     float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	Variance float64 `yaml:"variance,omitempty" json:"variance,omitempty"`
	Bound    float64 `yaml:"bound,omitempty" json:"bound,omitempty"`
}

// UniformSpec describes a uniform variable on [min, max).
func UniformSpec(min, max float64) Spec {
	return Spec{Kind: KindUniform, Min: min, Max: max}
}

// ConstantSpec describes a constant variable.
func ConstantSpec(v float64) Spec {
	return Spec{Kind: KindConstant, Value: v}
}

// NormalSpec describes a bounded normal variable.
func NormalSpec(mean, variance, bound float64) Spec {
	return Spec{Kind: KindNormal, Mean: mean, Variance: variance, Bound: bound}
}

// Validate checks the parameters of the distribution.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindUniform:
		if s.Min > s.Max {
			return fmt.Errorf("%w: uniform min %v above max %v", ErrInvalidParameters, s.Min, s.Max)
		}
	case KindConstant:
	case KindNormal:
		if s.Variance < 0 {
			return fmt.Errorf("%w: normal variance %v is negative", ErrInvalidParameters, s.Variance)
		}
		if s.Bound < 0 {
			return fmt.Errorf("%w: normal bound %v is negative", ErrInvalidParameters, s.Bound)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, s.Kind)
	}
	return nil
}

// Build validates the spec and constructs the variable.
func (s Spec) Build() (Variable, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindUniform:
		return NewUniform(s.Min, s.Max), nil
	case KindConstant:
		return NewConstant(s.Value), nil
	default:
		return NewNormal(s.Mean, s.Variance, s.Bound), nil
	}
}

// NonNegative reports whether every sample is guaranteed to be >= 0.
func (s Spec) NonNegative() bool {
	switch s.Kind {
	case KindUniform:
		return s.Min >= 0
	case KindConstant:
		return s.Value >= 0
	case KindNormal:
		return s.Bound > 0 && s.Mean-s.Bound >= 0
	}
	return false
}

func (s Spec) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch s.Kind {
	case KindUniform:
		return "Uniform(" + f(s.Min) + "," + f(s.Max) + ")"
	case KindConstant:
		return "Constant(" + f(s.Value) + ")"
	case KindNormal:
		return "Normal(" + f(s.Mean) + "," + f(s.Variance) + "," + f(s.Bound) + ")"
	}
	return string(s.Kind)
}
