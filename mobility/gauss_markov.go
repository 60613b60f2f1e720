package mobility

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/internal/sim"
	"github.com/signalsfoundry/mobility-simulator/model"
)

const gaussMarkovStreams = 6

// GaussMarkov evolves speed, direction and pitch as first order
// autoregressive processes, re-evaluated every TimeStep:
//
//	x' = alpha·x + (1-alpha)·mean + sqrt(1-alpha²)·noise
//
// Pitch is measured from the horizontal plane. When a step would leave the
// bounds or enter an obstacle the node is reflected off the struck face,
// and the matching mean is reflected too so the process stays biased away
// from it.
type GaussMarkov struct {
	base
	cfg GaussMarkovConfig

	meanVelocityVar  randvar.Variable
	normalVelocity   randvar.Variable
	meanDirectionVar randvar.Variable
	normalDirection  randvar.Variable
	meanPitchVar     randvar.Variable
	normalPitch      randvar.Variable

	initialised bool

	velocity, direction, pitch             float64
	meanVelocity, meanDirection, meanPitch float64
}

// NewGaussMarkov validates cfg and builds a Gauss-Markov policy driven by
// sched. An empty id is replaced by a generated one.
func NewGaussMarkov(id string, cfg GaussMarkovConfig, sched sim.EventScheduler, opts ...Option) (*GaussMarkov, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gauss-markov config: %w", err)
	}
	vars, err := buildVariables(
		cfg.MeanVelocity, cfg.NormalVelocity,
		cfg.MeanDirection, cfg.NormalDirection,
		cfg.MeanPitch, cfg.NormalPitch,
	)
	if err != nil {
		return nil, fmt.Errorf("gauss-markov config: %w", err)
	}
	g := &GaussMarkov{
		base:             newBase(id, model.PolicyGaussMarkov, cfg.Bounds, sched, opts),
		cfg:              cfg,
		meanVelocityVar:  vars[0],
		normalVelocity:   vars[1],
		meanDirectionVar: vars[2],
		normalDirection:  vars[3],
		meanPitchVar:     vars[4],
		normalPitch:      vars[5],
	}
	g.dispatch = g.handle
	return g, nil
}

// AssignStreams binds, in order: mean velocity, velocity noise, mean
// direction, direction noise, mean pitch, pitch noise.
func (g *GaussMarkov) AssignStreams(gen *randvar.Generator, first uint64) int {
	gen.Bind(first,
		g.meanVelocityVar, g.normalVelocity,
		g.meanDirectionVar, g.normalDirection,
		g.meanPitchVar, g.normalPitch,
	)
	return gaussMarkovStreams
}

func (g *GaussMarkov) StreamCount() int { return gaussMarkovStreams }

// Config returns the configuration the policy was built with.
func (g *GaussMarkov) Config() GaussMarkovConfig { return g.cfg }

// State returns the current speed, direction and pitch of the process.
func (g *GaussMarkov) State() (velocity, direction, pitch float64) {
	return g.velocity, g.direction, g.pitch
}

// Means returns the current mean speed, direction and pitch.
func (g *GaussMarkov) Means() (velocity, direction, pitch float64) {
	return g.meanVelocity, g.meanDirection, g.meanPitch
}

func (g *GaussMarkov) handle(ev event) {
	switch ev.kind {
	case evStart, evResample:
		g.arrive(ev.stop)
		g.step()
	case evRebound:
		g.arrive(ev.stop)
		g.rebound(ev)
		g.walk(ev.remaining)
	}
}

// step advances the autoregressive process by one tick and walks a full
// time step.
func (g *GaussMarkov) step() {
	if !g.initialised {
		g.meanVelocity = g.meanVelocityVar.Float64()
		g.meanDirection = g.meanDirectionVar.Float64()
		g.meanPitch = g.meanPitchVar.Float64()
		g.velocity = g.meanVelocity
		g.direction = g.meanDirection
		g.pitch = g.meanPitch
		g.initialised = true
	}

	rv := g.normalVelocity.Float64()
	rd := g.normalDirection.Float64()
	rp := g.normalPitch.Float64()

	alpha := g.cfg.Alpha
	oneMinusAlpha := 1 - alpha
	noise := math.Sqrt(1 - alpha*alpha)
	g.velocity = alpha*g.velocity + oneMinusAlpha*g.meanVelocity + noise*rv
	g.direction = alpha*g.direction + oneMinusAlpha*g.meanDirection + noise*rd
	g.pitch = alpha*g.pitch + oneMinusAlpha*g.meanPitch + noise*rp

	g.helper.SetVelocity(core.ElevatedVelocity(g.velocity, g.direction, g.pitch))
	g.helper.Unpause()
	g.walk(g.cfg.TimeStep)
}

// walk schedules the next tick, or a rebound if the bounds or an obstacle
// come first.
func (g *GaussMarkov) walk(delayLeft time.Duration) {
	if delayLeft < 0 {
		g.log.Warn(context.Background(), "negative time left in step, using a full step",
			logging.Duration("delay_left", delayLeft),
			logging.Duration("time_step", g.cfg.TimeStep),
		)
		delayLeft = g.cfg.TimeStep
	}

	pos, vel := g.current()
	speed := vel.Norm()
	if speed == 0 {
		g.schedule(delayLeft, event{kind: evResample, stop: pos, obstacle: core.NoObstacle})
		g.notify()
		return
	}

	next := pos.Add(vel.Mul(delayLeft.Seconds()))
	if g.bounds.IsInside(next) {
		hit := g.legEnd(pos, vel, core.CalculateDistance(pos, next))
		if hit.HitObstacle() {
			delay := seconds(hit.Distance / speed)
			g.schedule(delay, event{kind: evRebound, stop: hit.Point, remaining: nonNegative(delayLeft - delay), obstacle: hit.Obstacle})
		} else {
			g.schedule(delayLeft, event{kind: evResample, stop: next, obstacle: core.NoObstacle})
		}
		g.notify()
		return
	}

	exit := g.bounds.CalculateIntersection(pos, vel)
	hit := g.legEnd(pos, vel, core.CalculateDistance(pos, exit))
	stop := exit
	if hit.HitObstacle() {
		stop = hit.Point
	}
	delay := seconds(hit.Distance / speed)
	g.schedule(delay, event{kind: evRebound, stop: stop, remaining: delayLeft - delay, obstacle: hit.Obstacle})
	g.notify()
}

// rebound reflects the velocity off the struck face together with the
// matching angle of the process state and of its mean.
func (g *GaussMarkov) rebound(ev event) {
	box, isObstacle := g.struck(ev.obstacle)
	vel := g.helper.GetVelocity()
	side := box.ImpactSide(ev.stop, vel, !isObstacle)
	switch side {
	case core.Right, core.Left:
		g.direction = math.Pi - g.direction
		g.meanDirection = math.Pi - g.meanDirection
	case core.Top, core.Bottom:
		g.direction = -g.direction
		g.meanDirection = -g.meanDirection
	case core.Up, core.Down:
		g.pitch = -g.pitch
		g.meanPitch = -g.meanPitch
	}
	g.helper.SetVelocity(side.Reflect(vel))
	g.helper.Unpause()
	g.metrics.Rebound(g.kind, side, isObstacle)
	g.logRebound(side, ev.obstacle, ev.remaining)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

var _ Policy = (*GaussMarkov)(nil)
