package core

import (
	"time"

	"github.com/golang/geo/r3"
)

// Clock is the time source the integrator reads. timectrl.TimeController
// and the event scheduler both satisfy it.
type Clock interface {
	Now() time.Time
}

// ConstantVelocityHelper integrates a position under a constant velocity
// between explicit updates. It starts paused at the origin.
type ConstantVelocityHelper struct {
	clock      Clock
	position   r3.Vector
	velocity   r3.Vector
	lastUpdate time.Time
	paused     bool
}

// NewConstantVelocityHelper constructs a paused helper reading time from clock.
func NewConstantVelocityHelper(clock Clock) *ConstantVelocityHelper {
	return &ConstantVelocityHelper{
		clock:      clock,
		lastUpdate: clock.Now(),
		paused:     true,
	}
}

// SetPosition moves the node to p and clears its velocity.
func (h *ConstantVelocityHelper) SetPosition(p r3.Vector) {
	h.position = p
	h.velocity = r3.Vector{}
	h.lastUpdate = h.clock.Now()
}

// MoveTo places the node at p as of now, keeping its velocity and pause
// state.
func (h *ConstantVelocityHelper) MoveTo(p r3.Vector) {
	h.position = p
	h.lastUpdate = h.clock.Now()
}

// GetCurrentPosition returns the position as of the last update.
func (h *ConstantVelocityHelper) GetCurrentPosition() r3.Vector {
	return h.position
}

// SetVelocity changes the velocity from now on.
func (h *ConstantVelocityHelper) SetVelocity(v r3.Vector) {
	h.velocity = v
	h.lastUpdate = h.clock.Now()
}

// GetVelocity returns the velocity, or zero while paused.
func (h *ConstantVelocityHelper) GetVelocity() r3.Vector {
	if h.paused {
		return r3.Vector{}
	}
	return h.velocity
}

// Update advances the position to the current time.
func (h *ConstantVelocityHelper) Update() {
	now := h.clock.Now()
	elapsed := now.Sub(h.lastUpdate).Seconds()
	h.lastUpdate = now
	if h.paused {
		return
	}
	h.position = h.position.Add(h.velocity.Mul(elapsed))
}

// UpdateWithBounds advances the position and freezes it on the faces of
// bounds when it would have left them.
func (h *ConstantVelocityHelper) UpdateWithBounds(bounds Box) {
	h.Update()
	h.position = bounds.clampInto(h.position)
}

// Pause stops the node where it is now. The velocity is kept for Unpause.
func (h *ConstantVelocityHelper) Pause() {
	h.Update()
	h.paused = true
}

// Unpause resumes motion with the stored velocity.
func (h *ConstantVelocityHelper) Unpause() {
	h.Update()
	h.paused = false
}

// Paused reports whether the helper is paused.
func (h *ConstantVelocityHelper) Paused() bool {
	return h.paused
}
