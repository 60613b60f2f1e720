package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/internal/randvar"
	"github.com/signalsfoundry/mobility-simulator/internal/sim"
	"github.com/signalsfoundry/mobility-simulator/kb"
	"github.com/signalsfoundry/mobility-simulator/mobility"
	"github.com/signalsfoundry/mobility-simulator/model"
	"github.com/signalsfoundry/mobility-simulator/timectrl"
)

// DefaultStep is how far Run advances the scheduler between context checks.
const DefaultStep = time.Second

// Simulation is a built scenario ready to run.
type Simulation struct {
	Name      string
	Clock     *timectrl.TimeController
	Scheduler sim.EventScheduler
	KB        *kb.KnowledgeBase
	Policies  []mobility.Policy

	log          logging.Logger
	step         time.Duration
	schedMetrics *observability.SchedulerCollector
	started      bool
}

type buildConfig struct {
	log   logging.Logger
	reg   prometheus.Registerer
	start time.Time
	step  time.Duration
}

// Option customises Build.
type Option func(*buildConfig)

// WithLogger sets the logger handed to the simulation and its policies.
func WithLogger(l logging.Logger) Option {
	return func(c *buildConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRegisterer enables Prometheus metrics for policies and the scheduler.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *buildConfig) { c.reg = reg }
}

// WithStartTime sets the simulated time of the first event.
func WithStartTime(t time.Time) Option {
	return func(c *buildConfig) { c.start = t }
}

// WithStep sets how far Run advances between context checks.
func WithStep(d time.Duration) Option {
	return func(c *buildConfig) {
		if d > 0 {
			c.step = d
		}
	}
}

// Build creates every node of f, places it and binds its random streams.
// Streams are handed out in file order: for each group the allocator first,
// then each node's policy.
func Build(ctx context.Context, f *File, opts ...Option) (*Simulation, error) {
	cfg := buildConfig{
		log:   logging.Noop(),
		start: time.Unix(0, 0).UTC(),
		step:  DefaultStep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, span := observability.Tracer().Start(ctx, "scenario.Build",
		trace.WithAttributes(
			attribute.String("scenario.name", f.Name),
			attribute.Int("scenario.nodes", f.NodeCount()),
		))
	defer span.End()

	var (
		mobMetrics   *observability.MobilityCollector
		schedMetrics *observability.SchedulerCollector
		schedOpts    []sim.Option
	)
	if cfg.reg != nil {
		var err error
		if mobMetrics, err = observability.NewMobilityCollector(cfg.reg); err != nil {
			return nil, fmt.Errorf("mobility metrics: %w", err)
		}
		if schedMetrics, err = observability.NewSchedulerCollector(cfg.reg); err != nil {
			return nil, fmt.Errorf("scheduler metrics: %w", err)
		}
		schedOpts = append(schedOpts, sim.WithRecorder(schedMetrics))
	}

	clock := timectrl.NewTimeController(cfg.start, cfg.step, timectrl.Accelerated)
	s := &Simulation{
		Name:         f.Name,
		Clock:        clock,
		Scheduler:    sim.NewEventScheduler(clock, schedOpts...),
		KB:           kb.NewKnowledgeBase(),
		log:          cfg.log,
		step:         cfg.step,
		schedMetrics: schedMetrics,
	}

	obstacles := f.ObstacleBoxes()
	field := core.NewObstacleField(obstacles...)
	gen := randvar.NewGenerator(f.Seed, f.Run)
	perKind := make(map[model.PolicyKind]int)

	for _, g := range f.Groups {
		var alloc *RandomBoxAllocator
		for i := 0; i < g.Count; i++ {
			id := ""
			if g.Name != "" {
				id = fmt.Sprintf("%s-%d", g.Name, i)
			}
			policyOpts := []mobility.Option{
				mobility.WithLogger(cfg.log),
				mobility.WithObstacles(obstacles...),
				mobility.WithCourseChangeListener(s.record),
			}
			if mobMetrics != nil {
				policyOpts = append(policyOpts, mobility.WithMetricsRecorder(mobMetrics))
			}
			p, err := newPolicy(g, id, f.Bounds, s.Scheduler, policyOpts)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "build policy")
				return nil, err
			}

			if alloc == nil {
				box := p.Bounds()
				if g.Initial != nil {
					box = *g.Initial
				}
				alloc = NewRandomBoxAllocator(box, field)
				alloc.AssignStreams(gen, gen.Allocate(allocatorStreams))
			}

			if err := s.KB.AddNode(model.Node{ID: p.ID(), Name: id, Group: g.Name, Policy: g.Policy}); err != nil {
				return nil, fmt.Errorf("group %q: %w", g.Name, err)
			}
			pos, err := alloc.Next()
			if err != nil {
				return nil, fmt.Errorf("group %q node %s: %w", g.Name, p.ID(), err)
			}
			if err := p.SetPosition(pos); err != nil {
				return nil, fmt.Errorf("group %q node %s: %w", g.Name, p.ID(), err)
			}
			p.AssignStreams(gen, gen.Allocate(p.StreamCount()))

			s.Policies = append(s.Policies, p)
			perKind[g.Policy]++
			cfg.log.Info(ctx, "node built",
				logging.String("node", p.ID()),
				logging.String("group", g.Name),
				logging.String("policy", string(g.Policy)),
				logging.Any("position", pos),
			)
		}
	}
	for kind, n := range perKind {
		mobMetrics.SetActiveNodes(kind, n)
	}
	return s, nil
}

// newPolicy overlays the group parameters on the policy defaults and
// builds the policy.
func newPolicy(g Group, id string, bounds core.Box, sched sim.EventScheduler, opts []mobility.Option) (mobility.Policy, error) {
	switch g.Policy {
	case model.PolicyRandomWalk:
		cfg := mobility.DefaultRandomWalkConfig()
		cfg.Bounds = bounds
		if err := g.decodeParams(&cfg); err != nil {
			return nil, err
		}
		p, err := mobility.NewRandomWalk(id, cfg, sched, opts...)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		return p, nil
	case model.PolicyRandomDirection:
		cfg := mobility.DefaultRandomDirectionConfig()
		cfg.Bounds = bounds
		if err := g.decodeParams(&cfg); err != nil {
			return nil, err
		}
		p, err := mobility.NewRandomDirection(id, cfg, sched, opts...)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		return p, nil
	case model.PolicyGaussMarkov:
		cfg := mobility.DefaultGaussMarkovConfig()
		cfg.Bounds = bounds
		if err := g.decodeParams(&cfg); err != nil {
			return nil, err
		}
		p, err := mobility.NewGaussMarkov(id, cfg, sched, opts...)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("group %q: unknown mobility policy %q", g.Name, g.Policy)
	}
}

// record forwards a course change to the knowledge base.
func (s *Simulation) record(c model.CourseChange) {
	if err := s.KB.RecordCourseChange(c); err != nil {
		s.log.Warn(context.Background(), "course change dropped",
			logging.String("node", c.NodeID),
			logging.String("error", err.Error()),
		)
	}
}

// Start schedules the first event of every policy. It is idempotent.
func (s *Simulation) Start() {
	if s.started {
		return
	}
	s.started = true
	for _, p := range s.Policies {
		p.Start()
	}
}

// Stop cancels every pending event.
func (s *Simulation) Stop() {
	for _, p := range s.Policies {
		p.Stop()
	}
	s.started = false
}

// Run advances simulated time by d as fast as possible, checking ctx
// between steps.
func (s *Simulation) Run(ctx context.Context, d time.Duration) error {
	ctx, span := observability.Tracer().Start(ctx, "scenario.Run",
		trace.WithAttributes(
			attribute.String("scenario.name", s.Name),
			attribute.Int64("run.duration_ms", d.Milliseconds()),
		))
	defer span.End()

	s.Start()
	end := s.Clock.Now().Add(d)
	fired := 0
	for now := s.Clock.Now(); now.Before(end); now = s.Clock.Now() {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run cancelled")
			return err
		}
		next := now.Add(s.step)
		if next.After(end) {
			next = end
		}
		fired += s.Scheduler.RunUntil(next)
		s.schedMetrics.SetSimulatedTime(s.Clock.Elapsed())
	}

	stats := s.Scheduler.Stats()
	span.SetAttributes(attribute.Int("run.events_fired", fired))
	s.log.Info(ctx, "run complete",
		logging.Duration("simulated", s.Clock.Elapsed()),
		logging.Int("events_fired", fired),
		logging.Int("events_pending", stats.Pending),
	)
	return nil
}

// RunRealtime advances simulated time in step with the wall clock, one
// tick at a time, for d or until ctx is done.
func (s *Simulation) RunRealtime(ctx context.Context, d, tick time.Duration) error {
	ctx, span := observability.Tracer().Start(ctx, "scenario.RunRealtime",
		trace.WithAttributes(attribute.String("scenario.name", s.Name)))
	defer span.End()

	s.Start()
	wall := timectrl.NewTimeController(s.Clock.Now(), tick, timectrl.RealTime)
	wall.AddListener(func(t time.Time) {
		s.Scheduler.RunUntil(t)
		s.schedMetrics.SetSimulatedTime(s.Clock.Elapsed())
	})
	<-wall.StartContext(ctx, d)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	s.log.Info(ctx, "realtime run complete", logging.Duration("simulated", s.Clock.Elapsed()))
	return nil
}

// Nodes returns the knowledge base view of every node, sorted by ID.
func (s *Simulation) Nodes() []model.Node {
	return s.KB.ListNodes()
}
