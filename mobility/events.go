package mobility

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/signalsfoundry/mobility-simulator/core"
)

// eventKind enumerates the transitions a policy can schedule.
type eventKind int

const (
	evStart eventKind = iota
	evResample
	evRebound
	evBeginPause
	evEndPause
)

func (k eventKind) String() string {
	switch k {
	case evStart:
		return "start"
	case evResample:
		return "resample"
	case evRebound:
		return "rebound"
	case evBeginPause:
		return "begin_pause"
	case evEndPause:
		return "end_pause"
	default:
		return "unknown"
	}
}

// event is the payload of the single pending scheduler callback.
type event struct {
	kind eventKind
	// stop is where the node is when the event fires. The node is snapped
	// onto it so that surface points stay exactly on their face.
	stop r3.Vector
	// remaining is the unspent part of the current leg (rebounds).
	remaining time.Duration
	// obstacle is the struck obstacle, or core.NoObstacle for the bounds.
	obstacle int
	// side is the face that ended the leg (end of pause).
	side core.Side
}

// seconds converts a float duration in seconds to a time.Duration rounded
// to the nanosecond. Negative input, -Inf included, yields zero; NaN, +Inf
// and values past the range of time.Duration yield the largest duration.
func seconds(s float64) time.Duration {
	switch {
	case math.IsNaN(s):
		return time.Duration(math.MaxInt64)
	case s <= 0:
		return 0
	case s*float64(time.Second) >= math.MaxInt64:
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Round(s * float64(time.Second)))
}
