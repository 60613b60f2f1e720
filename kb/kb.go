package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/mobility-simulator/model"
)

var (
	// ErrNodeExists is returned when adding a node whose ID is taken.
	ErrNodeExists = errors.New("node already exists")
	// ErrNodeNotFound is returned for an unknown node ID.
	ErrNodeNotFound = errors.New("node not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventCourseChanged
)

func (t EventType) String() string {
	switch t {
	case EventNodeAdded:
		return "node_added"
	case EventCourseChanged:
		return "course_changed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Node model.Node
	// Change is set for EventCourseChanged.
	Change model.CourseChange
}

// KnowledgeBase is an in-memory, thread-safe store of simulated nodes and
// their last known kinematic state.
type KnowledgeBase struct {
	mu sync.RWMutex

	nodes map[string]*model.Node

	nextSub int
	subs    map[int]func(Event)
	order   []int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		nodes: make(map[string]*model.Node),
		subs:  make(map[int]func(Event)),
	}
}

// AddNode stores a copy of n. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddNode(n model.Node) error {
	if n.ID == "" {
		return fmt.Errorf("node ID must not be empty")
	}
	kb.mu.Lock()
	if _, exists := kb.nodes[n.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeExists, n.ID)
	}
	stored := n
	kb.nodes[n.ID] = &stored
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventNodeAdded, Node: n})
	return nil
}

// GetNode returns a copy of the node with the given ID.
func (kb *KnowledgeBase) GetNode(id string) (model.Node, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.nodes[id]
	if !ok {
		return model.Node{}, false
	}
	return *n, true
}

// ListNodes returns a snapshot of all nodes ordered by ID.
func (kb *KnowledgeBase) ListNodes() []model.Node {
	kb.mu.RLock()
	res := make([]model.Node, 0, len(kb.nodes))
	for _, n := range kb.nodes {
		res = append(res, *n)
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// RecordCourseChange updates a node's kinematic state and notifies
// subscribers in call order.
func (kb *KnowledgeBase) RecordCourseChange(c model.CourseChange) error {
	kb.mu.Lock()
	n, ok := kb.nodes[c.NodeID]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNodeNotFound, c.NodeID)
	}
	n.Position = c.Position
	n.Velocity = c.Velocity
	n.UpdatedAt = c.Time
	n.CourseChanges++
	event := Event{
		Type:   EventCourseChanged,
		Node:   *n, // copy for safety
		Change: c,
	}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return nil
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn
	kb.order = append(kb.order, id)

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if _, ok := kb.subs[id]; !ok {
			return
		}
		delete(kb.subs, id)
		for i, v := range kb.order {
			if v == id {
				kb.order = append(kb.order[:i], kb.order[i+1:]...)
				break
			}
		}
	}
}

// subscribersLocked returns the callbacks in subscription order.
// Caller must hold kb.mu.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	subs := make([]func(Event), 0, len(kb.order))
	for _, id := range kb.order {
		subs = append(subs, kb.subs[id])
	}
	return subs
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
