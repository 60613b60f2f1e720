// Package randvar provides the seeded random variables consumed by the
// mobility policies. Each variable draws from its own PCG stream so that a
// node's trajectory depends only on the seed, the run number and the stream
// indices it was assigned.
package randvar

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Variable is a source of float64 samples.
type Variable interface {
	Float64() float64
	// SetSource rebinds the variable to a stream. Variables that do not
	// consume randomness ignore it.
	SetSource(src rand.Source)
}

// Uniform samples from [Min, Max).
type Uniform struct {
	dist distuv.Uniform
}

// NewUniform returns a uniform variable on [min, max) bound to the global
// source until SetSource is called.
func NewUniform(min, max float64) *Uniform {
	return &Uniform{dist: distuv.Uniform{Min: min, Max: max}}
}

func (u *Uniform) Float64() float64 { return u.dist.Rand() }

func (u *Uniform) SetSource(src rand.Source) { u.dist.Src = src }

// Between draws from [min, max) on the variable's stream, ignoring its
// configured range.
func (u *Uniform) Between(min, max float64) float64 {
	return distuv.Uniform{Min: min, Max: max, Src: u.dist.Src}.Rand()
}

// Min returns the lower bound.
func (u *Uniform) Min() float64 { return u.dist.Min }

// Max returns the upper bound.
func (u *Uniform) Max() float64 { return u.dist.Max }

// Constant always returns the same value.
type Constant struct {
	Value float64
}

// NewConstant returns a variable that always yields v.
func NewConstant(v float64) *Constant {
	return &Constant{Value: v}
}

func (c *Constant) Float64() float64 { return c.Value }

func (c *Constant) SetSource(rand.Source) {}

// Normal samples a normal distribution and redraws any sample further than
// Bound from the mean. A Bound of zero leaves the distribution unbounded.
type Normal struct {
	dist  distuv.Normal
	bound float64
}

// NewNormal returns a bounded normal variable with the given mean and
// variance.
func NewNormal(mean, variance, bound float64) *Normal {
	return &Normal{
		dist:  distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)},
		bound: bound,
	}
}

func (n *Normal) Float64() float64 {
	for {
		v := n.dist.Rand()
		if n.bound <= 0 || math.Abs(v-n.dist.Mu) <= n.bound {
			return v
		}
	}
}

func (n *Normal) SetSource(src rand.Source) { n.dist.Src = src }

// Generator hands out independent, reproducible streams for one
// simulation run.
type Generator struct {
	seed uint64
	run  uint64

	mu   sync.Mutex
	next uint64
}

// NewGenerator returns a generator for the given seed and run number.
// Changing the run number yields independent replications of the same
// scenario.
func NewGenerator(seed, run uint64) *Generator {
	return &Generator{seed: seed, run: run}
}

// Source returns a fresh source positioned at the start of stream. Two
// calls with the same stream produce identical sequences.
func (g *Generator) Source(stream uint64) rand.Source {
	return rand.NewPCG(g.seed, g.run<<32^stream)
}

// Allocate reserves n consecutive stream indices and returns the first.
func (g *Generator) Allocate(n int) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	first := g.next
	g.next += uint64(n)
	return first
}

// Bind points vars at consecutive streams starting at first.
func (g *Generator) Bind(first uint64, vars ...Variable) {
	for i, v := range vars {
		v.SetSource(g.Source(first + uint64(i)))
	}
}
