package randvar

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestGenerator_SameStreamIsReproducible(t *testing.T) {
	g := NewGenerator(7, 1)
	a := NewUniform(0, 1)
	b := NewUniform(0, 1)
	a.SetSource(g.Source(3))
	b.SetSource(g.Source(3))
	for i := 0; i < 100; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d differs: %v != %v", i, x, y)
		}
	}
}

func TestGenerator_StreamsAndRunsDiffer(t *testing.T) {
	g := NewGenerator(7, 1)
	draw := func(v Variable) [4]float64 {
		var out [4]float64
		for i := range out {
			out[i] = v.Float64()
		}
		return out
	}

	a, b, c := NewUniform(0, 1), NewUniform(0, 1), NewUniform(0, 1)
	a.SetSource(g.Source(0))
	b.SetSource(g.Source(1))
	c.SetSource(NewGenerator(7, 2).Source(0))
	da, db, dc := draw(a), draw(b), draw(c)
	if da == db {
		t.Fatalf("distinct streams produced identical draws")
	}
	if da == dc {
		t.Fatalf("distinct runs produced identical draws")
	}
}

func TestGenerator_Allocate(t *testing.T) {
	g := NewGenerator(1, 1)
	if first := g.Allocate(3); first != 0 {
		t.Fatalf("first allocation = %d, want 0", first)
	}
	if first := g.Allocate(6); first != 3 {
		t.Fatalf("second allocation = %d, want 3", first)
	}
	if first := g.Allocate(4); first != 9 {
		t.Fatalf("third allocation = %d, want 9", first)
	}
}

func TestUniform_Range(t *testing.T) {
	u := NewUniform(2, 4)
	u.SetSource(NewGenerator(42, 1).Source(0))
	samples := make([]float64, 5000)
	for i := range samples {
		v := u.Float64()
		if v < 2 || v >= 4 {
			t.Fatalf("sample %v outside [2,4)", v)
		}
		samples[i] = v
	}
	if m := stat.Mean(samples, nil); math.Abs(m-3) > 0.05 {
		t.Fatalf("mean = %v, want about 3", m)
	}
	if v := u.Between(-1, -0.5); v < -1 || v >= -0.5 {
		t.Fatalf("Between sample %v outside [-1,-0.5)", v)
	}
}

func TestNormal_Bounded(t *testing.T) {
	n := NewNormal(5, 4, 1)
	n.SetSource(NewGenerator(42, 1).Source(0))
	samples := make([]float64, 2000)
	for i := range samples {
		v := n.Float64()
		if math.Abs(v-5) > 1 {
			t.Fatalf("sample %v further than bound from mean", v)
		}
		samples[i] = v
	}
	if m := stat.Mean(samples, nil); math.Abs(m-5) > 0.1 {
		t.Fatalf("mean = %v, want about 5", m)
	}
}

func TestNormal_Unbounded(t *testing.T) {
	n := NewNormal(0, 1, 0)
	n.SetSource(NewGenerator(3, 1).Source(0))
	samples := make([]float64, 10000)
	for i := range samples {
		samples[i] = n.Float64()
	}
	if sd := stat.StdDev(samples, nil); math.Abs(sd-1) > 0.05 {
		t.Fatalf("std dev = %v, want about 1", sd)
	}
}

func TestConstant(t *testing.T) {
	c := NewConstant(2)
	c.SetSource(NewGenerator(1, 1).Source(0))
	if c.Float64() != 2 || c.Float64() != 2 {
		t.Fatalf("constant variable changed value")
	}
}

func TestSpec_BuildAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr error
		nonNeg  bool
	}{
		{"uniform", UniformSpec(2, 4), nil, true},
		{"uniform negative", UniformSpec(-1, 4), nil, false},
		{"uniform reversed", UniformSpec(4, 2), ErrInvalidParameters, false},
		{"constant", ConstantSpec(2), nil, true},
		{"normal", NormalSpec(0, 1, 10), nil, false},
		{"normal positive", NormalSpec(20, 1, 10), nil, true},
		{"normal negative variance", NormalSpec(0, -1, 10), ErrInvalidParameters, false},
		{"unknown", Spec{Kind: "pareto"}, ErrUnknownKind, false},
	}
	for _, tc := range tests {
		v, err := tc.spec.Build()
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil || v == nil {
			t.Fatalf("%s: Build() = %v, %v", tc.name, v, err)
		}
		if got := tc.spec.NonNegative(); got != tc.nonNeg {
			t.Fatalf("%s: NonNegative() = %v, want %v", tc.name, got, tc.nonNeg)
		}
	}
}

func TestSpec_String(t *testing.T) {
	if got := UniformSpec(0, 6.283184).String(); got != "Uniform(0,6.283184)" {
		t.Fatalf("String() = %q", got)
	}
	if got := NormalSpec(0, 1, 10).String(); got != "Normal(0,1,10)" {
		t.Fatalf("String() = %q", got)
	}
}
