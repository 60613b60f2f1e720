package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

var (
	// ErrMalformedBox is returned when a box text form is not six
	// pipe-separated numbers.
	ErrMalformedBox = errors.New("malformed box")
	// ErrInvalidBounds is returned when a volume has a min bound above its max bound.
	ErrInvalidBounds = errors.New("invalid bounds")
)

// Side identifies a face of a Box or an edge of a Rectangle.
type Side int

const (
	Right  Side = iota // x = XMax
	Left               // x = XMin
	Top                // y = YMax
	Bottom             // y = YMin
	Up                 // z = ZMax
	Down               // z = ZMin
)

func (s Side) String() string {
	switch s {
	case Right:
		return "right"
	case Left:
		return "left"
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Reflect negates the velocity component orthogonal to the side and leaves
// the other two untouched.
func (s Side) Reflect(v r3.Vector) r3.Vector {
	switch s {
	case Right, Left:
		v.X = -v.X
	case Top, Bottom:
		v.Y = -v.Y
	case Up, Down:
		v.Z = -v.Z
	}
	return v
}

// Box is an axis-aligned 3D volume. Each min bound is expected to be at or
// below its max bound; the methods do not enforce it (see Validate).
type Box struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// NewBox builds a box from its six bounds.
func NewBox(xMin, xMax, yMin, yMax, zMin, zMax float64) Box {
	return Box{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax, ZMin: zMin, ZMax: zMax}
}

// Validate reports whether every min bound is at or below its max bound.
func (b Box) Validate() error {
	for a := axisX; a <= axisZ; a++ {
		lo, hi := b.bounds(a)
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return fmt.Errorf("%w: box %s", ErrInvalidBounds, b)
		}
	}
	return nil
}

// IsInside reports whether p lies in the box, surface included.
func (b Box) IsInside(p r3.Vector) bool {
	return p.X <= b.XMax && p.X >= b.XMin &&
		p.Y <= b.YMax && p.Y >= b.YMin &&
		p.Z <= b.ZMax && p.Z >= b.ZMin
}

// IsOutside reports whether p lies outside the box or on its surface.
//
// A point on the surface is both inside and outside. Mobility relies on
// this: a node resting on an obstacle face must still be allowed to query
// that obstacle with WillCollide.
func (b Box) IsOutside(p r3.Vector) bool {
	return p.X >= b.XMax || p.X <= b.XMin ||
		p.Y >= b.YMax || p.Y <= b.YMin ||
		p.Z >= b.ZMax || p.Z <= b.ZMin
}

// Contains reports whether other lies entirely within b.
func (b Box) Contains(other Box) bool {
	return other.XMin >= b.XMin && other.XMax <= b.XMax &&
		other.YMin >= b.YMin && other.YMax <= b.YMax &&
		other.ZMin >= b.ZMin && other.ZMax <= b.ZMax
}

// GetClosestSide returns the face nearest to p. Exact ties between axes go
// to X, then Y, then Z; within one axis the min face wins a tie.
func (b Box) GetClosestSide(p r3.Vector) Side {
	xMinDist := math.Abs(p.X - b.XMin)
	xMaxDist := math.Abs(b.XMax - p.X)
	yMinDist := math.Abs(p.Y - b.YMin)
	yMaxDist := math.Abs(b.YMax - p.Y)
	zMinDist := math.Abs(p.Z - b.ZMin)
	zMaxDist := math.Abs(b.ZMax - p.Z)
	minX := math.Min(xMinDist, xMaxDist)
	minY := math.Min(yMinDist, yMaxDist)
	minZ := math.Min(zMinDist, zMaxDist)

	switch {
	case minX <= minY && minX <= minZ:
		if xMinDist <= xMaxDist {
			return Left
		}
		return Right
	case minY <= minZ:
		if yMinDist <= yMaxDist {
			return Bottom
		}
		return Top
	default:
		if zMinDist <= zMaxDist {
			return Down
		}
		return Up
	}
}

// ImpactSide returns the face that a point at p moving with velocity v is
// striking. With leaving set, only faces v points out through are
// considered; otherwise only faces v points in through. Among those the
// nearest wins, with the same tie-breaking as GetClosestSide. When v points
// through no face the result is GetClosestSide(p).
//
// Unlike GetClosestSide this resolves corner and edge hits to a face the
// node is actually crossing.
func (b Box) ImpactSide(p, v r3.Vector, leaving bool) Side {
	candidates := [...]struct {
		side   Side
		dist   float64
		toward float64 // velocity component along the face's outward normal
	}{
		{Left, math.Abs(p.X - b.XMin), -v.X},
		{Right, math.Abs(b.XMax - p.X), v.X},
		{Bottom, math.Abs(p.Y - b.YMin), -v.Y},
		{Top, math.Abs(b.YMax - p.Y), v.Y},
		{Down, math.Abs(p.Z - b.ZMin), -v.Z},
		{Up, math.Abs(b.ZMax - p.Z), v.Z},
	}
	best, found := Side(0), false
	bestDist := math.Inf(1)
	for _, c := range candidates {
		crossing := c.toward > 0
		if !leaving {
			crossing = c.toward < 0
		}
		if crossing && c.dist < bestDist {
			best, bestDist, found = c.side, c.dist, true
		}
	}
	if !found {
		return b.GetClosestSide(p)
	}
	return best
}

// CalculateIntersection returns the point where the ray current+t·speed
// leaves the box. current must be inside the box and speed must be non-zero;
// both are programmer errors and panic.
//
// A zero speed component means the ray is parallel to that pair of faces and
// the axis does not limit the exit. The exit coordinate is placed exactly on
// the face that was crossed.
func (b Box) CalculateIntersection(current, speed r3.Vector) r3.Vector {
	if !b.IsInside(current) {
		panic(fmt.Sprintf("core: CalculateIntersection from %v which is outside box %s", current, b))
	}
	if speed == (r3.Vector{}) {
		panic(fmt.Sprintf("core: CalculateIntersection with zero speed in box %s", b))
	}

	_, tmax, _, exitAxis, _ := b.slab(current, speed)
	point := current.Add(speed.Mul(tmax))
	lo, hi := b.bounds(exitAxis)
	face := lo
	if component(speed, exitAxis) > 0 {
		face = hi
	}
	return b.clampInto(withComponent(point, exitAxis, face))
}

// WillCollide reports whether the ray current+t·speed, t ≥ 0, enters the box
// and returns the entry point. current must be outside the box (its surface
// counts as outside); calling it from the interior panics.
//
// A ray already touching the box and moving away from it does not collide.
func (b Box) WillCollide(current, speed r3.Vector) (r3.Vector, bool) {
	if !b.IsOutside(current) {
		panic(fmt.Sprintf("core: WillCollide from %v which is inside box %s", current, b))
	}

	tmin, tmax, entryAxis, _, ok := b.slab(current, speed)
	if !ok || tmax < tmin || tmin < 0 {
		return r3.Vector{}, false
	}
	point := current.Add(speed.Mul(tmin))
	lo, hi := b.bounds(entryAxis)
	face := hi
	if component(speed, entryAxis) > 0 {
		face = lo
	}
	return b.clampInto(withComponent(point, entryAxis, face)), true
}

// slab intersects the line current+t·speed with the three pairs of faces
// and returns the retained parametric interval together with the axes that
// set each end. ok is false when the line is parallel to a pair of faces and
// lies outside them.
func (b Box) slab(current, speed r3.Vector) (tmin, tmax float64, minAxis, maxAxis axis, ok bool) {
	tmin, tmax = math.Inf(-1), math.Inf(1)
	for a := axisX; a <= axisZ; a++ {
		lo, hi := b.bounds(a)
		p, v := component(current, a), component(speed, a)
		if v == 0 {
			if p < lo || p > hi {
				return 0, 0, a, a, false
			}
			continue
		}
		t1 := (lo - p) / v
		t2 := (hi - p) / v
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin, minAxis = t1, a
		}
		if t2 < tmax {
			tmax, maxAxis = t2, a
		}
	}
	return tmin, tmax, minAxis, maxAxis, true
}

func (b Box) bounds(a axis) (float64, float64) {
	switch a {
	case axisX:
		return b.XMin, b.XMax
	case axisY:
		return b.YMin, b.YMax
	default:
		return b.ZMin, b.ZMax
	}
}

func (b Box) clampInto(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: clamp(p.X, b.XMin, b.XMax),
		Y: clamp(p.Y, b.YMin, b.YMax),
		Z: clamp(p.Z, b.ZMin, b.ZMax),
	}
}

// String renders the box as xMin|xMax|yMin|yMax|zMin|zMax using the shortest
// representation that parses back to the same bits.
func (b Box) String() string {
	return formatBounds(b.XMin, b.XMax, b.YMin, b.YMax, b.ZMin, b.ZMax)
}

// ParseBox parses the pipe-delimited text form produced by String.
func ParseBox(s string) (Box, error) {
	v, err := parseBounds(s, 6)
	if err != nil {
		return Box{}, fmt.Errorf("%w %q: %v", ErrMalformedBox, s, err)
	}
	return NewBox(v[0], v[1], v[2], v[3], v[4], v[5]), nil
}

// MarshalText implements encoding.TextMarshaler.
func (b Box) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Box) UnmarshalText(text []byte) error {
	parsed, err := ParseBox(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func formatBounds(values ...float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, "|")
}

func parseBounds(s string, n int) ([]float64, error) {
	fields := strings.Split(s, "|")
	if len(fields) != n {
		return nil, fmt.Errorf("want %d pipe-separated fields, got %d", n, len(fields))
	}
	values := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
