package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// MobilityCollector bundles Prometheus metrics for the mobility policies. It
// satisfies mobility.MetricsRecorder.
type MobilityCollector struct {
	gatherer prometheus.Gatherer

	EventsScheduled *prometheus.CounterVec
	EventDelays     *prometheus.HistogramVec
	Rebounds        *prometheus.CounterVec
	CourseChanges   *prometheus.CounterVec
	ActiveNodes     *prometheus.GaugeVec
}

// NewMobilityCollector registers mobility Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewMobilityCollector(reg prometheus.Registerer) (*MobilityCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobility_events_scheduled_total",
		Help: "Mobility transitions scheduled, labeled by policy and event.",
	}, []string{"policy", "event"})
	scheduled, err := registerCounterVec(reg, scheduled, "mobility_events_scheduled_total")
	if err != nil {
		return nil, err
	}

	delays := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mobility_event_delay_seconds",
		Help:    "Simulated time between scheduling a mobility transition and its due time.",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"policy"})
	delays, err = registerHistogramVec(reg, delays, "mobility_event_delay_seconds")
	if err != nil {
		return nil, err
	}

	rebounds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobility_rebounds_total",
		Help: "Legs ended by a face, labeled by policy, side and whether the face belongs to the bounds or an obstacle.",
	}, []string{"policy", "side", "target"})
	rebounds, err = registerCounterVec(reg, rebounds, "mobility_rebounds_total")
	if err != nil {
		return nil, err
	}

	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobility_course_changes_total",
		Help: "Course change notifications, labeled by policy.",
	}, []string{"policy"})
	changes, err = registerCounterVec(reg, changes, "mobility_course_changes_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mobility_active_nodes",
		Help: "Nodes currently driven by each policy.",
	}, []string{"policy"}), "mobility_active_nodes")
	if err != nil {
		return nil, err
	}

	return &MobilityCollector{
		gatherer:        gatherer,
		EventsScheduled: scheduled,
		EventDelays:     delays,
		Rebounds:        rebounds,
		CourseChanges:   changes,
		ActiveNodes:     active,
	}, nil
}

// EventScheduled counts a scheduled transition and observes its delay.
func (c *MobilityCollector) EventScheduled(kind model.PolicyKind, event string, delay time.Duration) {
	if c == nil {
		return
	}
	c.EventsScheduled.WithLabelValues(string(kind), event).Inc()
	c.EventDelays.WithLabelValues(string(kind)).Observe(delay.Seconds())
}

// Rebound counts a leg ended by side of the bounds or of an obstacle.
func (c *MobilityCollector) Rebound(kind model.PolicyKind, side core.Side, obstacle bool) {
	if c == nil {
		return
	}
	target := "bounds"
	if obstacle {
		target = "obstacle"
	}
	c.Rebounds.WithLabelValues(string(kind), side.String(), target).Inc()
}

// CourseChanged counts a course change notification.
func (c *MobilityCollector) CourseChanged(kind model.PolicyKind) {
	if c == nil {
		return
	}
	c.CourseChanges.WithLabelValues(string(kind)).Inc()
}

// SetActiveNodes sets the number of nodes driven by kind.
func (c *MobilityCollector) SetActiveNodes(kind model.PolicyKind, n int) {
	if c == nil {
		return
	}
	c.ActiveNodes.WithLabelValues(string(kind)).Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MobilityCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
