package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ErrMalformedRectangle is returned when a rectangle text form is not four
// pipe-separated numbers.
var ErrMalformedRectangle = errors.New("malformed rectangle")

// approachStep is the forward time step used to decide whether a point is
// closing in on a rectangle or moving away from it.
const approachStep = 1e-7

// Rectangle is the 2D analogue of Box in the XY plane. Z components of the
// points passed in are ignored.
type Rectangle struct {
	XMin, XMax float64
	YMin, YMax float64
}

// NewRectangle builds a rectangle from its four bounds.
func NewRectangle(xMin, xMax, yMin, yMax float64) Rectangle {
	return Rectangle{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}
}

// Validate reports whether each min bound is at or below its max bound.
func (r Rectangle) Validate() error {
	if math.IsNaN(r.XMin) || math.IsNaN(r.XMax) || math.IsNaN(r.YMin) || math.IsNaN(r.YMax) ||
		r.XMin > r.XMax || r.YMin > r.YMax {
		return fmt.Errorf("%w: rectangle %s", ErrInvalidBounds, r)
	}
	return nil
}

// IsInside reports whether p lies in the rectangle, edges included.
func (r Rectangle) IsInside(p r3.Vector) bool {
	return p.X <= r.XMax && p.X >= r.XMin &&
		p.Y <= r.YMax && p.Y >= r.YMin
}

// IsOutside is the strict complement of IsInside.
func (r Rectangle) IsOutside(p r3.Vector) bool {
	return !r.IsInside(p)
}

// GetClosestSide returns the edge nearest to p with the same tie-breaking as
// Box: X before Y, min edge before max edge.
func (r Rectangle) GetClosestSide(p r3.Vector) Side {
	xMinDist := math.Abs(p.X - r.XMin)
	xMaxDist := math.Abs(r.XMax - p.X)
	yMinDist := math.Abs(p.Y - r.YMin)
	yMaxDist := math.Abs(r.YMax - p.Y)
	if math.Min(xMinDist, xMaxDist) <= math.Min(yMinDist, yMaxDist) {
		if xMinDist <= xMaxDist {
			return Left
		}
		return Right
	}
	if yMinDist <= yMaxDist {
		return Bottom
	}
	return Top
}

// CalculateIntersection returns the point where the ray current+t·speed
// leaves the rectangle. current must be inside. The Z component of the result
// is always zero.
func (r Rectangle) CalculateIntersection(current, speed r3.Vector) r3.Vector {
	if !r.IsInside(current) {
		panic(fmt.Sprintf("core: CalculateIntersection from %v which is outside rectangle %s", current, r))
	}
	xMaxY := current.Y + (r.XMax-current.X)/speed.X*speed.Y
	xMinY := current.Y + (r.XMin-current.X)/speed.X*speed.Y
	yMaxX := current.X + (r.YMax-current.Y)/speed.Y*speed.X
	yMinX := current.X + (r.YMin-current.Y)/speed.Y*speed.X
	switch {
	case r.withinY(xMaxY) && speed.X >= 0:
		return r3.Vector{X: r.XMax, Y: xMaxY}
	case r.withinY(xMinY) && speed.X <= 0:
		return r3.Vector{X: r.XMin, Y: xMinY}
	case r.withinX(yMaxX) && speed.Y >= 0:
		return r3.Vector{X: yMaxX, Y: r.YMax}
	case r.withinX(yMinX) && speed.Y <= 0:
		return r3.Vector{X: yMinX, Y: r.YMin}
	}
	panic(fmt.Sprintf("core: no exit point from %v with speed %v in rectangle %s", current, speed, r))
}

// DoesCollide reports whether a point at current, heading for next with the
// given speed, will hit the rectangle. current must be outside.
//
// The infinite line through current and next must cross an edge, and the
// point must be approaching: at least two of the four edge distances have to
// shrink over a small forward step. This rejects lines that only touch the
// rectangle behind the moving point.
func (r Rectangle) DoesCollide(current, next, speed r3.Vector) bool {
	if !r.IsOutside(current) {
		panic(fmt.Sprintf("core: DoesCollide from %v which is inside rectangle %s", current, r))
	}
	if len(r.lineHits(current, next)) == 0 {
		return false
	}

	ahead := r3.Vector{X: current.X + speed.X*approachStep, Y: current.Y + speed.Y*approachStep}
	score := 0
	if math.Abs(ahead.X-r.XMin) < math.Abs(current.X-r.XMin) {
		score++
	}
	if math.Abs(ahead.X-r.XMax) < math.Abs(current.X-r.XMax) {
		score++
	}
	if math.Abs(ahead.Y-r.YMax) < math.Abs(current.Y-r.YMax) {
		score++
	}
	if math.Abs(ahead.Y-r.YMin) < math.Abs(current.Y-r.YMin) {
		score++
	}
	return score >= 2
}

// CollisionPoint returns the edge crossing nearest to current on the line
// through current and next. The collision must exist (see DoesCollide).
func (r Rectangle) CollisionPoint(current, next, speed r3.Vector) r3.Vector {
	if !r.DoesCollide(current, next, speed) {
		panic(fmt.Sprintf("core: CollisionPoint without collision from %v towards %v in rectangle %s", current, next, r))
	}
	flat := r3.Vector{X: current.X, Y: current.Y}
	hits := r.lineHits(current, next)
	best := hits[0]
	for _, h := range hits[1:] {
		if CalculateDistance(flat, h) < CalculateDistance(flat, best) {
			best = h
		}
	}
	return best
}

// lineHits returns the points where the infinite line through a and b
// crosses the rectangle edges, in yMax, yMin, xMax, xMin order.
func (r Rectangle) lineHits(a, b r3.Vector) []r3.Vector {
	dx := b.X - a.X
	dy := b.Y - a.Y
	var hits []r3.Vector
	if dx == 0 {
		if dy != 0 && r.withinX(a.X) {
			hits = append(hits, r3.Vector{X: a.X, Y: r.YMax}, r3.Vector{X: a.X, Y: r.YMin})
		}
		return hits
	}

	m := dy / dx
	c := a.Y - m*a.X
	if m != 0 {
		if x := (r.YMax - c) / m; r.withinX(x) {
			hits = append(hits, r3.Vector{X: x, Y: r.YMax})
		}
		if x := (r.YMin - c) / m; r.withinX(x) {
			hits = append(hits, r3.Vector{X: x, Y: r.YMin})
		}
	}
	if y := m*r.XMax + c; r.withinY(y) {
		hits = append(hits, r3.Vector{X: r.XMax, Y: y})
	}
	if y := m*r.XMin + c; r.withinY(y) {
		hits = append(hits, r3.Vector{X: r.XMin, Y: y})
	}
	return hits
}

func (r Rectangle) withinX(x float64) bool { return r.XMin <= x && x <= r.XMax }
func (r Rectangle) withinY(y float64) bool { return r.YMin <= y && y <= r.YMax }

// Extrude lifts the rectangle into a Box spanning [zMin, zMax].
func (r Rectangle) Extrude(zMin, zMax float64) Box {
	return NewBox(r.XMin, r.XMax, r.YMin, r.YMax, zMin, zMax)
}

// String renders the rectangle as xMin|xMax|yMin|yMax.
func (r Rectangle) String() string {
	return formatBounds(r.XMin, r.XMax, r.YMin, r.YMax)
}

// ParseRectangle parses the pipe-delimited text form produced by String.
func ParseRectangle(s string) (Rectangle, error) {
	v, err := parseBounds(s, 4)
	if err != nil {
		return Rectangle{}, fmt.Errorf("%w %q: %v", ErrMalformedRectangle, s, err)
	}
	return NewRectangle(v[0], v[1], v[2], v[3]), nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rectangle) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rectangle) UnmarshalText(text []byte) error {
	parsed, err := ParseRectangle(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
