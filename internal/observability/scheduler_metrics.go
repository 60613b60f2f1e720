package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes event scheduler metrics. It satisfies
// sim.Recorder.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	EventsPending   prometheus.Gauge
	EventsFired     prometheus.Counter
	EventsCancelled prometheus.Counter
	SimulatedTime   prometheus.Gauge
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_events_pending",
		Help: "Number of events waiting in the scheduler queue.",
	})
	pending, err := registerGauge(reg, pending, "scheduler_events_pending")
	if err != nil {
		return nil, err
	}

	fired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_events_fired_total",
		Help: "Cumulative number of events executed by the scheduler.",
	})
	fired, err = registerCounter(reg, fired, "scheduler_events_fired_total")
	if err != nil {
		return nil, err
	}

	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_events_cancelled_total",
		Help: "Cumulative number of events cancelled before they ran.",
	})
	cancelled, err = registerCounter(reg, cancelled, "scheduler_events_cancelled_total")
	if err != nil {
		return nil, err
	}

	simTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_simulated_seconds",
		Help: "Simulated time elapsed since the start of the run.",
	})
	simTime, err = registerGauge(reg, simTime, "scheduler_simulated_seconds")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:        gatherer,
		EventsPending:   pending,
		EventsFired:     fired,
		EventsCancelled: cancelled,
		SimulatedTime:   simTime,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetPendingEvents updates the queue depth gauge.
func (c *SchedulerCollector) SetPendingEvents(n int) {
	if c == nil || c.EventsPending == nil {
		return
	}
	c.EventsPending.Set(float64(n))
}

// IncEventsFired increments the fired counter.
func (c *SchedulerCollector) IncEventsFired() {
	if c == nil || c.EventsFired == nil {
		return
	}
	c.EventsFired.Inc()
}

// IncEventsCancelled increments the cancelled counter.
func (c *SchedulerCollector) IncEventsCancelled() {
	if c == nil || c.EventsCancelled == nil {
		return
	}
	c.EventsCancelled.Inc()
}

// SetSimulatedTime records how far the run has advanced.
func (c *SchedulerCollector) SetSimulatedTime(elapsed time.Duration) {
	if c == nil || c.SimulatedTime == nil {
		return
	}
	if elapsed < 0 {
		elapsed = 0
	}
	c.SimulatedTime.Set(elapsed.Seconds())
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
