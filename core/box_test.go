package core

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func cube() Box { return NewBox(0, 10, 0, 10, 0, 10) }

func TestBox_InsideOutsideAsymmetry(t *testing.T) {
	b := cube()

	interior := r3.Vector{X: 5, Y: 5, Z: 5}
	if !b.IsInside(interior) || b.IsOutside(interior) {
		t.Fatalf("interior point: IsInside=%v IsOutside=%v", b.IsInside(interior), b.IsOutside(interior))
	}

	exterior := r3.Vector{X: 15, Y: 5, Z: 5}
	if b.IsInside(exterior) || !b.IsOutside(exterior) {
		t.Fatalf("exterior point: IsInside=%v IsOutside=%v", b.IsInside(exterior), b.IsOutside(exterior))
	}

	// Surface points are inside (inclusive) and also count as outside.
	for _, p := range []r3.Vector{{X: 0, Y: 5, Z: 5}, {X: 10, Y: 10, Z: 10}, {X: 5, Y: 5, Z: 0}} {
		if !b.IsInside(p) {
			t.Fatalf("surface point %v should satisfy IsInside", p)
		}
		if !b.IsOutside(p) {
			t.Fatalf("surface point %v should satisfy IsOutside", p)
		}
	}
}

func TestBox_GetClosestSide(t *testing.T) {
	b := cube()
	tests := []struct {
		name string
		p    r3.Vector
		want Side
	}{
		{"xmin face", r3.Vector{X: 0, Y: 5, Z: 5}, Left},
		{"xmax", r3.Vector{X: 9, Y: 5, Z: 5}, Right},
		{"ymin", r3.Vector{X: 5, Y: 1, Z: 5}, Bottom},
		{"ymax", r3.Vector{X: 5, Y: 9.5, Z: 5}, Top},
		{"zmin", r3.Vector{X: 5, Y: 5, Z: 0.5}, Down},
		{"zmax", r3.Vector{X: 5, Y: 5, Z: 9.9}, Up},
		{"centre ties go to x min", r3.Vector{X: 5, Y: 5, Z: 5}, Left},
		{"x and y tie goes to x", r3.Vector{X: 9, Y: 9, Z: 5}, Right},
		{"y and z tie goes to y", r3.Vector{X: 5, Y: 1, Z: 1}, Bottom},
		{"outside point", r3.Vector{X: 5, Y: 5, Z: 12}, Up},
	}
	for _, tc := range tests {
		if got := b.GetClosestSide(tc.p); got != tc.want {
			t.Fatalf("%s: GetClosestSide(%v) = %v, want %v", tc.name, tc.p, got, tc.want)
		}
	}
}

func TestBox_CalculateIntersection(t *testing.T) {
	b := cube()
	tests := []struct {
		current, speed, want r3.Vector
	}{
		{r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 1}, r3.Vector{X: 10, Y: 5, Z: 5}},
		{r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{Y: -2}, r3.Vector{X: 5, Y: 0, Z: 5}},
		{r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{Z: 3}, r3.Vector{X: 5, Y: 5, Z: 10}},
		{r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 1, Y: 2}, r3.Vector{X: 7.5, Y: 10, Z: 5}},
		{r3.Vector{X: 2, Y: 2, Z: 2}, r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 10, Y: 10, Z: 10}},
		// Starting on the face being left.
		{r3.Vector{X: 10, Y: 5, Z: 5}, r3.Vector{X: 1}, r3.Vector{X: 10, Y: 5, Z: 5}},
	}
	for _, tc := range tests {
		got := b.CalculateIntersection(tc.current, tc.speed)
		if !near(got, tc.want) {
			t.Fatalf("CalculateIntersection(%v, %v) = %v, want %v", tc.current, tc.speed, got, tc.want)
		}
		if !b.IsInside(got) {
			t.Fatalf("exit point %v should lie on the box surface", got)
		}
	}
}

func TestBox_CalculateIntersectionPanics(t *testing.T) {
	b := cube()
	mustPanic(t, "from outside", func() { b.CalculateIntersection(r3.Vector{X: 15, Y: 5, Z: 5}, r3.Vector{X: 1}) })
	mustPanic(t, "zero speed", func() { b.CalculateIntersection(r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{}) })
}

func TestBox_WillCollide(t *testing.T) {
	b := cube()

	point, ok := b.WillCollide(r3.Vector{X: 15, Y: 5, Z: 5}, r3.Vector{X: -1})
	if !ok {
		t.Fatalf("expected collision moving towards the box")
	}
	if point != (r3.Vector{X: 10, Y: 5, Z: 5}) {
		t.Fatalf("collision point = %v, want (10,5,5)", point)
	}

	if _, ok := b.WillCollide(r3.Vector{X: 15, Y: 5, Z: 5}, r3.Vector{X: 1}); ok {
		t.Fatalf("moving away must not collide")
	}

	// Parallel to the x faces but outside their slab: never enters.
	if _, ok := b.WillCollide(r3.Vector{X: 15, Y: 5, Z: 5}, r3.Vector{Y: 1}); ok {
		t.Fatalf("parallel ray outside the slab must not collide")
	}

	// Misses the box diagonally.
	if _, ok := b.WillCollide(r3.Vector{X: 15, Y: 15, Z: 5}, r3.Vector{X: -1, Y: 1}); ok {
		t.Fatalf("diverging ray must not collide")
	}

	// Diagonal entry through the y max face.
	point, ok = b.WillCollide(r3.Vector{X: 5, Y: 20, Z: 5}, r3.Vector{X: -0.1, Y: -1})
	if !ok {
		t.Fatalf("expected diagonal collision")
	}
	if point.Y != 10 || math.Abs(point.X-4) > 1e-9 {
		t.Fatalf("diagonal collision point = %v, want (4,10,5)", point)
	}
}

func TestBox_WillCollideFromSurface(t *testing.T) {
	b := cube()
	face := r3.Vector{X: 10, Y: 5, Z: 5}

	if _, ok := b.WillCollide(face, r3.Vector{X: 1}); ok {
		t.Fatalf("leaving from the surface must not collide")
	}
	if _, ok := b.WillCollide(face, r3.Vector{Y: 1}); ok {
		t.Fatalf("sliding along the surface must not collide")
	}
	point, ok := b.WillCollide(face, r3.Vector{X: -1})
	if !ok || point != face {
		t.Fatalf("heading into the box from its surface: got %v ok=%v", point, ok)
	}
}

func TestBox_WillCollidePanicsFromInside(t *testing.T) {
	b := cube()
	mustPanic(t, "from inside", func() { b.WillCollide(r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{X: 1}) })
}

func TestSide_Reflect(t *testing.T) {
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	tests := []struct {
		side Side
		want r3.Vector
	}{
		{Right, r3.Vector{X: -1, Y: 2, Z: 3}},
		{Left, r3.Vector{X: -1, Y: 2, Z: 3}},
		{Top, r3.Vector{X: 1, Y: -2, Z: 3}},
		{Bottom, r3.Vector{X: 1, Y: -2, Z: 3}},
		{Up, r3.Vector{X: 1, Y: 2, Z: -3}},
		{Down, r3.Vector{X: 1, Y: 2, Z: -3}},
	}
	for _, tc := range tests {
		if got := tc.side.Reflect(v); got != tc.want {
			t.Fatalf("%v.Reflect(%v) = %v, want %v", tc.side, v, got, tc.want)
		}
	}
	if got := Right.Reflect(r3.Vector{X: 1}); got != (r3.Vector{X: -1}) {
		t.Fatalf("rebound off right face: got %v, want (-1,0,0)", got)
	}
}

func TestBox_RoundTrip(t *testing.T) {
	boxes := []Box{
		NewBox(0, 100, 0, 100, 0, 100),
		NewBox(-100, 100, -100.5, 100.25, 0, 1e-9),
		NewBox(0.1, 0.2, 1.0/3, 2.0/3, math.Pi, 2*math.Pi),
	}
	for _, b := range boxes {
		parsed, err := ParseBox(b.String())
		if err != nil {
			t.Fatalf("ParseBox(%q): %v", b.String(), err)
		}
		if parsed != b {
			t.Fatalf("round trip mismatch: %v != %v", parsed, b)
		}
	}
	if got := NewBox(0, 100, 0, 100, 0, 100).String(); got != "0|100|0|100|0|100" {
		t.Fatalf("String() = %q", got)
	}
}

func TestParseBox_Malformed(t *testing.T) {
	for _, s := range []string{"", "0|100|0|100|0", "0|100|0|100|0100", "0|100|0|100|0|100|7", "a|1|2|3|4|5"} {
		if _, err := ParseBox(s); !errors.Is(err, ErrMalformedBox) {
			t.Fatalf("ParseBox(%q) err = %v, want ErrMalformedBox", s, err)
		}
	}
}

func TestBox_UnmarshalText(t *testing.T) {
	var b Box
	if err := b.UnmarshalText([]byte("-1|1|-2|2|0|5")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != NewBox(-1, 1, -2, 2, 0, 5) {
		t.Fatalf("unexpected box %v", b)
	}
	text, err := b.MarshalText()
	if err != nil || string(text) != "-1|1|-2|2|0|5" {
		t.Fatalf("MarshalText = %q, %v", text, err)
	}
}

func TestBox_ValidateAndContains(t *testing.T) {
	if err := cube().Validate(); err != nil {
		t.Fatalf("cube should be valid: %v", err)
	}
	if err := NewBox(1, 0, 0, 1, 0, 1).Validate(); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
	if !cube().Contains(NewBox(1, 2, 1, 2, 1, 2)) {
		t.Fatalf("cube should contain inner box")
	}
	if cube().Contains(NewBox(9, 11, 1, 2, 1, 2)) {
		t.Fatalf("cube should not contain overlapping box")
	}
}

func near(a, b r3.Vector) bool {
	return CalculateDistance(a, b) < 1e-9
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	f()
}

func TestBox_ImpactSide(t *testing.T) {
	b := cube()
	tests := []struct {
		name    string
		p, v    r3.Vector
		leaving bool
		want    Side
	}{
		{"leaving through x max", r3.Vector{X: 10, Y: 5, Z: 5}, r3.Vector{X: 1}, true, Right},
		{"corner prefers x", r3.Vector{X: 10, Y: 10, Z: 5}, r3.Vector{X: 1, Y: 1}, true, Right},
		{"corner after x reflected", r3.Vector{X: 10, Y: 10, Z: 5}, r3.Vector{X: -1, Y: 1}, true, Top},
		{"entering through y min", r3.Vector{X: 5, Y: 0, Z: 5}, r3.Vector{Y: 1}, false, Bottom},
		{"entering edge", r3.Vector{X: 0, Y: 0, Z: 5}, r3.Vector{X: -1, Y: 1}, false, Bottom},
		{"no crossing falls back", r3.Vector{X: 5, Y: 5, Z: 9}, r3.Vector{}, true, Up},
	}
	for _, tc := range tests {
		if got := b.ImpactSide(tc.p, tc.v, tc.leaving); got != tc.want {
			t.Fatalf("%s: ImpactSide = %v, want %v", tc.name, got, tc.want)
		}
	}
}
