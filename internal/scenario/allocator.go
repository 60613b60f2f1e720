package scenario

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
)

const (
	allocatorStreams = 3
	maxAllocAttempts = 1000
)

// RandomBoxAllocator draws initial positions uniformly from a box,
// rejecting points inside obstacles.
type RandomBoxAllocator struct {
	box       core.Box
	obstacles *core.ObstacleField
	x, y, z   *randvar.Uniform
}

// NewRandomBoxAllocator returns an allocator over box avoiding obstacles.
func NewRandomBoxAllocator(box core.Box, obstacles *core.ObstacleField) *RandomBoxAllocator {
	if obstacles == nil {
		obstacles = core.NewObstacleField()
	}
	return &RandomBoxAllocator{
		box:       box,
		obstacles: obstacles,
		x:         randvar.NewUniform(box.XMin, box.XMax),
		y:         randvar.NewUniform(box.YMin, box.YMax),
		z:         randvar.NewUniform(box.ZMin, box.ZMax),
	}
}

// AssignStreams binds x, y and z to consecutive streams from first.
func (a *RandomBoxAllocator) AssignStreams(g *randvar.Generator, first uint64) int {
	g.Bind(first, a.x, a.y, a.z)
	return allocatorStreams
}

// Next returns the next position.
func (a *RandomBoxAllocator) Next() (r3.Vector, error) {
	for i := 0; i < maxAllocAttempts; i++ {
		p := r3.Vector{X: a.x.Float64(), Y: a.y.Float64(), Z: a.z.Float64()}
		if a.obstacles.Blocking(p) == core.NoObstacle {
			return p, nil
		}
	}
	return r3.Vector{}, fmt.Errorf("%w in %s after %d attempts", ErrNoFreePosition, a.box, maxAllocAttempts)
}
