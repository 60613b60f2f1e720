// Package trace writes node trajectories as CSV, one row per course change.
package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/signalsfoundry/mobility-simulator/kb"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// Header is the first row written by a CSVWriter.
var Header = []string{"time", "node", "x", "y", "z", "vx", "vy", "vz"}

// CSVWriter appends course changes to w. Time is written in seconds since
// start. It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	w       *csv.Writer
	start   time.Time
	header  bool
	rows    int
	lastErr error
}

// NewCSVWriter returns a writer whose time column counts from start.
func NewCSVWriter(w io.Writer, start time.Time) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), start: start}
}

// Write appends one row, preceded by the header on first use.
func (c *CSVWriter) Write(change model.CourseChange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.header {
		if err := c.w.Write(Header); err != nil {
			return c.fail(err)
		}
		c.header = true
	}
	row := []string{
		formatFloat(change.Time.Sub(c.start).Seconds()),
		change.NodeID,
		formatFloat(change.Position.X),
		formatFloat(change.Position.Y),
		formatFloat(change.Position.Z),
		formatFloat(change.Velocity.X),
		formatFloat(change.Velocity.Y),
		formatFloat(change.Velocity.Z),
	}
	if err := c.w.Write(row); err != nil {
		return c.fail(err)
	}
	c.rows++
	return nil
}

// Attach subscribes the writer to course changes recorded in the
// knowledge base. Write errors are kept and reported by Flush.
func (c *CSVWriter) Attach(base *kb.KnowledgeBase) (detach func()) {
	return base.Subscribe(func(e kb.Event) {
		if e.Type != kb.EventCourseChanged {
			return
		}
		_ = c.Write(e.Change)
	})
}

// Rows returns the number of data rows written.
func (c *CSVWriter) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Flush writes buffered rows to the underlying writer and returns the
// first error seen so far.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return c.fail(err)
	}
	return c.lastErr
}

func (c *CSVWriter) fail(err error) error {
	err = fmt.Errorf("write trace: %w", err)
	if c.lastErr == nil {
		c.lastErr = err
	}
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
