package core

import (
	"math"

	"github.com/golang/geo/r3"
)

// CalculateDistance returns the straight-line distance between two points.
func CalculateDistance(a, b r3.Vector) float64 {
	return a.Sub(b).Norm()
}

// SphericalVelocity converts a speed, a direction (azimuth in the XY plane)
// and a pitch measured from the +Z axis into a velocity vector:
// speed·(cosθ sinφ, sinθ sinφ, cosφ).
func SphericalVelocity(speed, direction, pitch float64) r3.Vector {
	return r3.Vector{
		X: math.Cos(direction) * math.Sin(pitch) * speed,
		Y: math.Sin(direction) * math.Sin(pitch) * speed,
		Z: math.Cos(pitch) * speed,
	}
}

// ElevatedVelocity converts a speed, a direction and a pitch measured from the
// horizontal plane into a velocity vector. Gauss-Markov uses this convention
// so that a zero mean pitch keeps the node level.
func ElevatedVelocity(speed, direction, pitch float64) r3.Vector {
	cosP := math.Cos(pitch)
	return r3.Vector{
		X: speed * math.Cos(direction) * cosP,
		Y: speed * math.Sin(direction) * cosP,
		Z: speed * math.Sin(pitch),
	}
}

// axis indexes the X, Y and Z components of a vector.
type axis int

const (
	axisX axis = iota
	axisY
	axisZ
)

func component(v r3.Vector, a axis) float64 {
	switch a {
	case axisX:
		return v.X
	case axisY:
		return v.Y
	default:
		return v.Z
	}
}

func withComponent(v r3.Vector, a axis, value float64) r3.Vector {
	switch a {
	case axisX:
		v.X = value
	case axisY:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
