package sim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/mobility-simulator/timectrl"
)

// EventScheduler schedules callbacks to run at specific simulation times
// based on a clock. Mobility policies use it to fire their next resample,
// rebound or pause transition.
//
// Two drive styles are supported:
//   - A ticking TimeController advances the clock and RunDue is called after
//     each tick (real-time runs).
//   - RunUntil jumps the clock from event to event (as-fast-as-possible runs).
type EventScheduler interface {
	// Schedule registers a callback f to run at simulation time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// ScheduleAfter registers f to run d after Now. A negative d is treated
	// as zero.
	ScheduleAfter(d time.Duration, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event.
	// It is a no-op if the ID is unknown or the event already ran.
	Cancel(id string)

	// Pending reports whether the event is scheduled and has not yet run or
	// been cancelled.
	Pending(id string) bool

	// Now returns the current simulation time, delegated to the underlying clock.
	Now() time.Time

	// RunDue executes all events whose scheduled time is <= Now().
	// It is safe to call multiple times; already-run events must not run again.
	RunDue()

	// RunUntil executes events in time order up to and including end,
	// moving the clock to each event's time, and leaves the clock at end.
	// It returns the number of events executed.
	RunUntil(end time.Time) int

	// Stats returns running totals for the scheduler.
	Stats() Stats
}

// Recorder receives scheduler activity. observability.SchedulerCollector
// implements it.
type Recorder interface {
	SetPendingEvents(n int)
	IncEventsFired()
	IncEventsCancelled()
}

// Stats are in-memory counters of scheduler activity.
type Stats struct {
	Scheduled uint64
	Fired     uint64
	Cancelled uint64
	Pending   int
}

// Option configures an EventScheduler.
type Option func(*eventScheduler)

// WithRecorder reports scheduler activity to r.
func WithRecorder(r Recorder) Option {
	return func(s *eventScheduler) {
		s.recorder = r
	}
}

// scheduledEvent represents a single scheduled callback.
type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

// eventScheduler stores events ordered by scheduled time. Events sharing a
// time run in the order they were scheduled.
type eventScheduler struct {
	clock    timectrl.ManualClock
	recorder Recorder

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when' (earliest first)
	index   map[string]*scheduledEvent
	stats   Stats
}

// NewEventScheduler creates a new event scheduler backed by the given clock.
// Runs use a *timectrl.TimeController; tests may pass any ManualClock.
func NewEventScheduler(clock timectrl.ManualClock, opts ...Option) EventScheduler {
	s := &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a callback to run at the specified simulation time.
func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}

	s.addEventLocked(ev)
	s.index[id] = ev
	s.stats.Scheduled++
	s.reportPendingLocked()

	return id
}

// ScheduleAfter registers a callback to run d after the current time.
func (s *eventScheduler) ScheduleAfter(d time.Duration, f func()) string {
	if d < 0 {
		d = 0
	}
	return s.Schedule(s.clock.Now().Add(d), f)
}

// addEventLocked inserts an event after every event scheduled at or before
// the same time. Caller must hold s.mu lock.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})

	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

// Cancel attempts to cancel a previously scheduled event.
func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}

	ev.cancelled = true
	delete(s.index, id)
	s.stats.Cancelled++
	if s.recorder != nil {
		s.recorder.IncEventsCancelled()
	}
	s.reportPendingLocked()
	// Actual removal from s.events is lazy; the run loops skip cancelled events.
}

// Pending reports whether the event is still waiting to run.
func (s *eventScheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Now returns the current simulation time from the underlying clock.
func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// Stats returns a snapshot of the counters.
func (s *eventScheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Pending = len(s.index)
	return st
}

// popNextLocked removes and returns the earliest non-cancelled event due at
// or before limit. Returns nil if none is due.
// Caller must hold s.mu lock.
func (s *eventScheduler) popNextLocked(limit time.Time) *scheduledEvent {
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(limit) {
			// Events are ordered by time, so all later ones are in the future too.
			return nil
		}
		s.events = s.events[1:]
		delete(s.index, ev.id)
		s.stats.Fired++
		s.reportPendingLocked()
		return ev
	}
	return nil
}

func (s *eventScheduler) reportPendingLocked() {
	if s.recorder != nil {
		s.recorder.SetPendingEvents(len(s.index))
	}
}

// RunDue executes all events whose scheduled time is <= Now().
// It is safe to call multiple times; already-run events will not run again.
func (s *eventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.popNextLocked(s.clock.Now())
		s.mu.Unlock()
		if ev == nil {
			return
		}
		s.fire(ev)
	}
}

// RunUntil executes every event due at or before end in time order.
func (s *eventScheduler) RunUntil(end time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		ev := s.popNextLocked(end)
		if ev != nil && ev.when.After(s.clock.Now()) {
			s.clock.SetTime(ev.when)
		}
		s.mu.Unlock()
		if ev == nil {
			break
		}
		s.fire(ev)
		fired++
	}
	if end.After(s.clock.Now()) {
		s.clock.SetTime(end)
	}
	return fired
}

// fire executes the callback OUTSIDE the lock to allow re-entrancy.
func (s *eventScheduler) fire(ev *scheduledEvent) {
	if s.recorder != nil {
		s.recorder.IncEventsFired()
	}
	if ev.f != nil {
		ev.f()
	}
}
