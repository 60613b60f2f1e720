package mobility

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/internal/sim"
	"github.com/signalsfoundry/mobility-simulator/model"
)

const randomDirectionStreams = 4

// RandomDirection moves a node in a straight line until it reaches the
// bounds or an obstacle, pauses there, then leaves on a new random heading
// that points away from the face it stopped on.
type RandomDirection struct {
	base
	cfg RandomDirectionConfig

	direction *randvar.Uniform
	speed     randvar.Variable
	pause     randvar.Variable
	pitch     *randvar.Uniform
}

// NewRandomDirection validates cfg and builds a random direction policy
// driven by sched. An empty id is replaced by a generated one.
func NewRandomDirection(id string, cfg RandomDirectionConfig, sched sim.EventScheduler, opts ...Option) (*RandomDirection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("random direction config: %w", err)
	}
	vars, err := buildVariables(cfg.Speed, cfg.Pause)
	if err != nil {
		return nil, fmt.Errorf("random direction config: %w", err)
	}
	d := &RandomDirection{
		base:      newBase(id, model.PolicyRandomDirection, cfg.Bounds, sched, opts),
		cfg:       cfg,
		direction: randvar.NewUniform(0, 2*math.Pi),
		speed:     vars[0],
		pause:     vars[1],
		pitch:     randvar.NewUniform(0, math.Pi),
	}
	d.dispatch = d.handle
	return d, nil
}

// AssignStreams binds direction, speed, pause and pitch, in that order.
func (d *RandomDirection) AssignStreams(g *randvar.Generator, first uint64) int {
	g.Bind(first, d.direction, d.speed, d.pause, d.pitch)
	return randomDirectionStreams
}

func (d *RandomDirection) StreamCount() int { return randomDirectionStreams }

// Config returns the configuration the policy was built with.
func (d *RandomDirection) Config() RandomDirectionConfig { return d.cfg }

func (d *RandomDirection) handle(ev event) {
	switch ev.kind {
	case evStart:
		d.arrive(ev.stop)
		d.move(d.direction.Between(0, 2*math.Pi), d.pitch.Between(0, math.Pi))
	case evBeginPause:
		d.arrive(ev.stop)
		d.beginPause(ev)
	case evEndPause:
		direction, pitch := d.awayFrom(ev.side, ev.obstacle != core.NoObstacle)
		d.move(direction, pitch)
	}
}

// move starts a leg with the given heading and a fresh speed, running to
// the bounds or the nearest obstacle.
func (d *RandomDirection) move(direction, pitch float64) {
	d.helper.UpdateWithBounds(d.bounds)
	pos := d.helper.GetCurrentPosition()
	speed := d.speed.Float64()
	vel := core.SphericalVelocity(speed, direction, pitch)
	d.helper.SetVelocity(vel)
	d.helper.Unpause()

	if vel.Norm() == 0 {
		d.schedule(0, event{kind: evBeginPause, stop: pos, obstacle: core.NoObstacle})
		d.notify()
		return
	}

	exit := d.bounds.CalculateIntersection(pos, vel)
	hit := d.legEnd(pos, vel, core.CalculateDistance(pos, exit))
	stop := exit
	if hit.HitObstacle() {
		stop = hit.Point
	}
	d.schedule(seconds(hit.Distance/vel.Norm()), event{kind: evBeginPause, stop: stop, obstacle: hit.Obstacle})
	d.notify()
}

// beginPause halts the node on the struck face and schedules the restart.
func (d *RandomDirection) beginPause(ev event) {
	box, isObstacle := d.struck(ev.obstacle)
	side := box.ImpactSide(ev.stop, d.helper.GetVelocity(), !isObstacle)
	d.helper.Pause()
	d.metrics.Rebound(d.kind, side, isObstacle)
	d.logRebound(side, ev.obstacle, 0)

	pause := seconds(d.pause.Float64())
	d.schedule(pause, event{kind: evEndPause, stop: ev.stop, obstacle: ev.obstacle, side: side})
	d.notify()
}

// awayFrom draws a heading biased to leave the face the node rests on.
//
// For the X and Y faces the direction is drawn from a half circle and
// rotated into the half plane facing away from the face; for the Z faces
// the pitch is rotated by a quarter turn. Stopping on an obstacle face
// points away from the obstacle; stopping on a bounds face points back
// into the region. The direction is never a full-circle draw rotated by a
// fixed offset. Each call takes exactly one sample from the direction stream
// and one from the pitch stream.
func (d *RandomDirection) awayFrom(side core.Side, obstacle bool) (direction, pitch float64) {
	pitch = d.pitch.Between(0, math.Pi)

	// Outward normal of the face the node has to move along.
	normal := side
	if !obstacle {
		normal = opposite(side)
	}
	switch normal {
	case core.Right: // +x
		return d.direction.Between(0, math.Pi) - math.Pi/2, pitch
	case core.Left: // -x
		return d.direction.Between(0, math.Pi) + math.Pi/2, pitch
	case core.Top: // +y
		return d.direction.Between(0, math.Pi), pitch
	case core.Bottom: // -y
		return d.direction.Between(0, math.Pi) + math.Pi, pitch
	case core.Up: // +z
		return d.direction.Between(0, 2*math.Pi), pitch - math.Pi/2
	default: // -z
		return d.direction.Between(0, 2*math.Pi), pitch + math.Pi/2
	}
}

// opposite returns the face across the box from s.
func opposite(s core.Side) core.Side {
	switch s {
	case core.Right:
		return core.Left
	case core.Left:
		return core.Right
	case core.Top:
		return core.Bottom
	case core.Bottom:
		return core.Top
	case core.Up:
		return core.Down
	default:
		return core.Up
	}
}

var _ Policy = (*RandomDirection)(nil)
