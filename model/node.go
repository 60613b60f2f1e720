package model

import (
	"fmt"
	"time"

	"github.com/golang/geo/r3"
)

// PolicyKind names the mobility policy driving a node.
type PolicyKind string

const (
	PolicyRandomWalk      PolicyKind = "random-walk"
	PolicyRandomDirection PolicyKind = "random-direction"
	PolicyGaussMarkov     PolicyKind = "gauss-markov"
)

// ParsePolicyKind validates a policy name from configuration.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch k := PolicyKind(s); k {
	case PolicyRandomWalk, PolicyRandomDirection, PolicyGaussMarkov:
		return k, nil
	}
	return "", fmt.Errorf("unknown mobility policy %q", s)
}

// Node is a simulated mobile node together with its last reported
// kinematic state.
type Node struct {
	ID     string
	Name   string
	Group  string // scenario group the node was created from
	Policy PolicyKind

	Position  r3.Vector
	Velocity  r3.Vector
	UpdatedAt time.Time

	// CourseChanges counts the notifications received for this node.
	CourseChanges uint64
}

// CourseChange is emitted every time a node's position or velocity changes.
type CourseChange struct {
	NodeID   string
	Time     time.Time
	Position r3.Vector
	Velocity r3.Vector
}
