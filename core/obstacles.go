package core

import "github.com/golang/geo/r3"

// NoObstacle marks a collision that was limited by the bounding region
// rather than by an obstacle.
const NoObstacle = -1

// Collision is the outcome of resolving a trajectory against an
// ObstacleField.
type Collision struct {
	// Distance travelled before the trajectory stops.
	Distance float64
	// Obstacle is the index of the obstacle struck, or NoObstacle.
	Obstacle int
	// Point is the entry point on the obstacle surface. It is only set when
	// an obstacle was struck.
	Point r3.Vector
}

// HitObstacle reports whether an obstacle limited the trajectory.
func (c Collision) HitObstacle() bool {
	return c.Obstacle != NoObstacle
}

// ObstacleField is the ordered set of obstacles one mobile node has to
// deflect around. Obstacles are appended during setup and never removed.
// The zero value is an empty field.
type ObstacleField struct {
	obstacles []Box
}

// NewObstacleField builds a field holding the given obstacles in order.
func NewObstacleField(obstacles ...Box) *ObstacleField {
	f := &ObstacleField{}
	for _, o := range obstacles {
		f.Add(o)
	}
	return f
}

// Add appends an obstacle. It is expected to lie within the node's bounds
// and to have a non-zero volume; neither is checked here.
func (f *ObstacleField) Add(obstacle Box) {
	f.obstacles = append(f.obstacles, obstacle)
}

// Len returns the number of obstacles.
func (f *ObstacleField) Len() int {
	return len(f.obstacles)
}

// At returns the obstacle at index i.
func (f *ObstacleField) At(i int) Box {
	return f.obstacles[i]
}

// Obstacles returns a copy of the obstacles in insertion order.
func (f *ObstacleField) Obstacles() []Box {
	return append([]Box(nil), f.obstacles...)
}

// Blocking returns the index of the first obstacle whose interior contains
// p, or NoObstacle. Surface points do not block.
func (f *ObstacleField) Blocking(p r3.Vector) int {
	for i, o := range f.obstacles {
		if !o.IsOutside(p) {
			return i
		}
	}
	return NoObstacle
}

// FindNearestCollision walks the obstacles in insertion order and returns
// the first one struck strictly closer than boundaryDistance. When nothing
// beats the boundary the result carries boundaryDistance and NoObstacle.
// Exact ties keep the earlier candidate.
func (f *ObstacleField) FindNearestCollision(current, velocity r3.Vector, boundaryDistance float64) Collision {
	best := Collision{Distance: boundaryDistance, Obstacle: NoObstacle}
	for i, o := range f.obstacles {
		point, ok := o.WillCollide(current, velocity)
		if !ok {
			continue
		}
		if d := CalculateDistance(current, point); d < best.Distance {
			best = Collision{Distance: d, Obstacle: i, Point: point}
		}
	}
	return best
}
