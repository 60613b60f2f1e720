package mobility

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/internal/sim"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// randomWalkStreams is the number of random streams a RandomWalk consumes.
const randomWalkStreams = 3

// RandomWalk moves a node in straight legs of a fixed duration or length,
// each with a freshly drawn speed, direction and pitch. Legs that would
// leave the bounds or enter an obstacle are reflected off the struck face
// and continue for the rest of the leg. A leg that runs into an obstacle
// while staying within the bounds ends at the obstacle and a new leg starts
// there.
type RandomWalk struct {
	base
	cfg RandomWalkConfig

	speed     randvar.Variable
	direction randvar.Variable
	pitch     randvar.Variable
}

// NewRandomWalk validates cfg and builds a random walk driven by sched. An
// empty id is replaced by a generated one.
func NewRandomWalk(id string, cfg RandomWalkConfig, sched sim.EventScheduler, opts ...Option) (*RandomWalk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("random walk config: %w", err)
	}
	vars, err := buildVariables(cfg.Speed, cfg.Direction, cfg.Pitch)
	if err != nil {
		return nil, fmt.Errorf("random walk config: %w", err)
	}
	w := &RandomWalk{
		base:      newBase(id, model.PolicyRandomWalk, cfg.Bounds, sched, opts),
		cfg:       cfg,
		speed:     vars[0],
		direction: vars[1],
		pitch:     vars[2],
	}
	w.dispatch = w.handle
	return w, nil
}

// AssignStreams binds speed, direction and pitch, in that order.
func (w *RandomWalk) AssignStreams(g *randvar.Generator, first uint64) int {
	g.Bind(first, w.speed, w.direction, w.pitch)
	return randomWalkStreams
}

func (w *RandomWalk) StreamCount() int { return randomWalkStreams }

// Config returns the configuration the walk was built with.
func (w *RandomWalk) Config() RandomWalkConfig { return w.cfg }

func (w *RandomWalk) handle(ev event) {
	switch ev.kind {
	case evStart, evResample:
		w.arrive(ev.stop)
		w.drawLeg()
	case evRebound:
		w.arrive(ev.stop)
		w.rebound(ev)
		w.walk(ev.remaining)
	}
}

// drawLeg samples a new velocity and starts a full leg.
func (w *RandomWalk) drawLeg() {
	speed := w.speed.Float64()
	direction := w.direction.Float64()
	pitch := w.pitch.Float64()
	w.helper.SetVelocity(core.SphericalVelocity(speed, direction, pitch))
	w.helper.Unpause()
	w.walk(w.legDuration(speed))
}

func (w *RandomWalk) legDuration(speed float64) time.Duration {
	if w.cfg.Mode == ModeTime || speed == 0 {
		return w.cfg.Time
	}
	return seconds(w.cfg.Distance / speed)
}

// walk schedules the event that ends the current leg, given delayLeft of
// leg time still to run.
func (w *RandomWalk) walk(delayLeft time.Duration) {
	pos, vel := w.current()
	speed := vel.Norm()
	if speed == 0 {
		w.schedule(delayLeft, event{kind: evResample, stop: pos, obstacle: core.NoObstacle})
		w.notify()
		return
	}

	next := pos.Add(vel.Mul(delayLeft.Seconds()))
	if w.bounds.IsInside(next) {
		hit := w.legEnd(pos, vel, core.CalculateDistance(pos, next))
		switch {
		case hit.HitObstacle() && hit.Distance == 0:
			// Resting on the obstacle and heading into it: deflect off it.
			w.schedule(0, event{kind: evRebound, stop: pos, remaining: delayLeft, obstacle: hit.Obstacle})
		case hit.HitObstacle():
			w.schedule(seconds(hit.Distance/speed), event{kind: evResample, stop: hit.Point, obstacle: hit.Obstacle})
		default:
			w.schedule(delayLeft, event{kind: evResample, stop: next, obstacle: core.NoObstacle})
		}
		w.notify()
		return
	}

	exit := w.bounds.CalculateIntersection(pos, vel)
	hit := w.legEnd(pos, vel, core.CalculateDistance(pos, exit))
	stop := exit
	if hit.HitObstacle() {
		stop = hit.Point
	}
	delay := seconds(hit.Distance / speed)
	w.schedule(delay, event{kind: evRebound, stop: stop, remaining: nonNegative(delayLeft - delay), obstacle: hit.Obstacle})
	w.notify()
}

// rebound negates the velocity component orthogonal to the struck face.
func (w *RandomWalk) rebound(ev event) {
	box, isObstacle := w.struck(ev.obstacle)
	vel := w.helper.GetVelocity()
	side := box.ImpactSide(ev.stop, vel, !isObstacle)
	w.helper.SetVelocity(side.Reflect(vel))
	w.metrics.Rebound(w.kind, side, isObstacle)
	w.logRebound(side, ev.obstacle, ev.remaining)
}

var _ Policy = (*RandomWalk)(nil)
