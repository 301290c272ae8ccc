// Package breadcrumb keeps the recent diagnostic trail of a session and turns
// it into timeline events for replay segments.
package breadcrumb

import (
	"time"

	"github.com/fakeyudi/replaycap/internal/buffer"
)

// DefaultCapacity is the number of breadcrumbs retained by a Ring.
const DefaultCapacity = 100

// Breadcrumb is one diagnostic trail entry.
type Breadcrumb struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type,omitempty"`
	Category  string         `json:"category,omitempty"`
	Message   string         `json:"message,omitempty"`
	Level     string         `json:"level,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (b Breadcrumb) Time() time.Time { return b.Timestamp }

// Ring retains the most recent breadcrumbs.
type Ring struct {
	ring *buffer.Ring[Breadcrumb]
}

// NewRing creates a Ring. A non-positive capacity selects DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{ring: buffer.NewRing[Breadcrumb](capacity)}
}

// Add records b, dropping the oldest breadcrumb when full.
func (r *Ring) Add(b Breadcrumb) {
	r.ring.Push(b)
}

// EventsInWindow returns breadcrumbs with start <= timestamp < end.
func (r *Ring) EventsInWindow(start, end time.Time) []Breadcrumb {
	return r.ring.Window(start, end)
}

// All returns every retained breadcrumb, oldest first.
func (r *Ring) All() []Breadcrumb {
	return r.ring.Snapshot()
}
