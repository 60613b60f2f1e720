// Package mobility implements the node movement policies: random walk,
// random direction and Gauss-Markov, each confined to a bounding box and
// deflected by box obstacles. Policies are driven by a discrete-event
// scheduler and keep at most one scheduled event at any time.
package mobility

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/internal/sim"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// Policy is the capability shared by the mobility policies. The set of
// implementations is closed: *RandomWalk, *RandomDirection and *GaussMarkov.
type Policy interface {
	ID() string
	Kind() model.PolicyKind
	Bounds() core.Box

	// Position returns the node position at the scheduler's current time.
	Position() r3.Vector
	// Velocity returns the current velocity; zero while paused.
	Velocity() r3.Vector
	// SetPosition teleports the node, cancels the pending event and, once
	// started, restarts the cycle from p immediately.
	SetPosition(p r3.Vector) error
	// AddObstacle registers an obstacle. Containment within the bounds is
	// the caller's responsibility.
	AddObstacle(b core.Box)
	Obstacles() []core.Box

	AddCourseChangeListener(fn func(model.CourseChange))
	// AssignStreams binds the policy's random variables to consecutive
	// streams starting at first and returns how many it used. Repeating a
	// call with the same arguments rewinds the streams.
	AssignStreams(g *randvar.Generator, first uint64) int
	// StreamCount is the value AssignStreams returns.
	StreamCount() int

	// Start schedules the initial event at the current time.
	Start()
	// Stop cancels the pending event and freezes the node.
	Stop()
	// PendingEvent returns the scheduler ID of the outstanding event, or "".
	PendingEvent() string

	isPolicy()
}

// MetricsRecorder receives policy activity. observability.MobilityCollector
// implements it.
type MetricsRecorder interface {
	EventScheduled(kind model.PolicyKind, event string, delay time.Duration)
	Rebound(kind model.PolicyKind, side core.Side, obstacle bool)
	CourseChanged(kind model.PolicyKind)
}

type nopMetrics struct{}

func (nopMetrics) EventScheduled(model.PolicyKind, string, time.Duration) {}
func (nopMetrics) Rebound(model.PolicyKind, core.Side, bool)              {}
func (nopMetrics) CourseChanged(model.PolicyKind)                         {}

// Option customises a policy at construction.
type Option func(*base)

// WithLogger sets the logger used for rebound and clamp diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetricsRecorder reports scheduling, rebounds and course changes to m.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(b *base) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithObstacles adds obstacles in order.
func WithObstacles(obstacles ...core.Box) Option {
	return func(b *base) {
		for _, o := range obstacles {
			b.obstacles.Add(o)
		}
	}
}

// WithCourseChangeListener registers fn before the first notification.
func WithCourseChangeListener(fn func(model.CourseChange)) Option {
	return func(b *base) {
		if fn != nil {
			b.listeners = append(b.listeners, fn)
		}
	}
}

// base carries the state and plumbing shared by every policy.
type base struct {
	id        string
	kind      model.PolicyKind
	bounds    core.Box
	sched     sim.EventScheduler
	helper    *core.ConstantVelocityHelper
	obstacles *core.ObstacleField
	log       logging.Logger
	metrics   MetricsRecorder
	listeners []func(model.CourseChange)

	started bool
	pending string
	// dispatch handles a fired event; set by the concrete policy.
	dispatch func(event)
}

func newBase(id string, kind model.PolicyKind, bounds core.Box, sched sim.EventScheduler, opts []Option) base {
	if id == "" {
		id = uuid.NewString()
	}
	b := base{
		id:        id,
		kind:      kind,
		bounds:    bounds,
		sched:     sched,
		helper:    core.NewConstantVelocityHelper(sched),
		obstacles: core.NewObstacleField(),
		log:       logging.Noop(),
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With(logging.String("node", id), logging.String("policy", string(kind)))
	return b
}

func (b *base) ID() string             { return b.id }
func (b *base) Kind() model.PolicyKind { return b.kind }
func (b *base) Bounds() core.Box       { return b.bounds }
func (b *base) PendingEvent() string   { return b.pending }
func (b *base) isPolicy()              {}

func (b *base) Position() r3.Vector {
	b.helper.UpdateWithBounds(b.bounds)
	return b.helper.GetCurrentPosition()
}

func (b *base) Velocity() r3.Vector {
	return b.helper.GetVelocity()
}

func (b *base) AddObstacle(o core.Box) {
	b.obstacles.Add(o)
}

func (b *base) Obstacles() []core.Box {
	return b.obstacles.Obstacles()
}

func (b *base) AddCourseChangeListener(fn func(model.CourseChange)) {
	b.listeners = append(b.listeners, fn)
}

func (b *base) SetPosition(p r3.Vector) error {
	if !b.bounds.IsInside(p) {
		return fmt.Errorf("%w: %v not in %s", ErrOutsideBounds, p, b.bounds)
	}
	if i := b.obstacles.Blocking(p); i != core.NoObstacle {
		return fmt.Errorf("%w: %v inside obstacle %d (%s)", ErrInsideObstacle, p, i, b.obstacles.At(i))
	}
	b.cancel()
	b.helper.SetPosition(p)
	b.notify()
	if b.started {
		b.schedule(0, event{kind: evStart, stop: p, obstacle: core.NoObstacle})
	}
	return nil
}

func (b *base) Start() {
	if b.started {
		return
	}
	b.started = true
	b.schedule(0, event{kind: evStart, stop: b.helper.GetCurrentPosition(), obstacle: core.NoObstacle})
}

func (b *base) Stop() {
	b.cancel()
	b.helper.Pause()
	b.started = false
}

// schedule replaces the pending event with ev, due after delay.
func (b *base) schedule(delay time.Duration, ev event) {
	b.cancel()
	if delay < 0 {
		b.log.Warn(context.Background(), "negative event delay clamped to zero",
			logging.String("event", ev.kind.String()),
			logging.Duration("delay", delay),
		)
		delay = 0
	}
	var id string
	id = b.sched.ScheduleAfter(delay, func() {
		if b.pending == id {
			b.pending = ""
		}
		b.dispatch(ev)
	})
	b.pending = id
	b.metrics.EventScheduled(b.kind, ev.kind.String(), delay)
}

func (b *base) cancel() {
	if b.pending != "" {
		b.sched.Cancel(b.pending)
		b.pending = ""
	}
}

// arrive brings the integrator to now and pins the node on stop.
func (b *base) arrive(stop r3.Vector) {
	b.helper.Update()
	b.helper.MoveTo(stop)
}

// current brings the integrator to now and returns position and velocity.
func (b *base) current() (r3.Vector, r3.Vector) {
	b.helper.UpdateWithBounds(b.bounds)
	return b.helper.GetCurrentPosition(), b.helper.GetVelocity()
}

// struck returns the box that ended a leg and whether it is an obstacle.
func (b *base) struck(obstacle int) (core.Box, bool) {
	if obstacle == core.NoObstacle {
		return b.bounds, false
	}
	return b.obstacles.At(obstacle), true
}

// legEnd resolves where a straight leg from pos with velocity vel stops,
// given the distance it would cover unobstructed.
func (b *base) legEnd(pos, vel r3.Vector, unobstructed float64) core.Collision {
	return b.obstacles.FindNearestCollision(pos, vel, unobstructed)
}

func (b *base) notify() {
	change := model.CourseChange{
		NodeID:   b.id,
		Time:     b.sched.Now(),
		Position: b.helper.GetCurrentPosition(),
		Velocity: b.helper.GetVelocity(),
	}
	b.metrics.CourseChanged(b.kind)
	for _, fn := range b.listeners {
		fn(change)
	}
}

func (b *base) logRebound(side core.Side, obstacle int, remaining time.Duration) {
	b.log.Debug(context.Background(), "rebound",
		logging.String("side", side.String()),
		logging.Int("obstacle", obstacle),
		logging.Duration("remaining", remaining),
	)
}
