// Package buffer holds the bounded in-memory buffers used while recording.
package buffer

import (
	"sync"
	"time"

	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// DefaultPendingCapacity bounds the events waiting for the next segment.
const DefaultPendingCapacity = 10_000

// Pending is an append-ordered queue of timeline events waiting to be placed
// in a segment. It is bounded: once full, new events are rejected and
// counted rather than evicting older ones.
type Pending struct {
	mu       sync.Mutex
	events   []rrweb.Event
	capacity int
	dropped  int64
}

// NewPending creates a Pending buffer. A non-positive capacity selects
// DefaultPendingCapacity.
func NewPending(capacity int) *Pending {
	if capacity <= 0 {
		capacity = DefaultPendingCapacity
	}
	return &Pending{capacity: capacity}
}

// Add appends ev. It reports false if the buffer is full.
func (p *Pending) Add(ev rrweb.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) >= p.capacity {
		p.dropped++
		return false
	}
	p.events = append(p.events, ev)
	return true
}

// AddAll appends events in order and returns how many were accepted.
func (p *Pending) AddAll(events []rrweb.Event) int {
	n := 0
	for _, ev := range events {
		if p.Add(ev) {
			n++
		}
	}
	return n
}

// Rotate removes events from the head while their timestamp is before until,
// passing each one to fn in insertion order. It stops at the first event at
// or after until, so an out-of-order late event stays queued.
func (p *Pending) Rotate(until time.Time, fn func(rrweb.Event)) {
	p.mu.Lock()
	var taken []rrweb.Event
	i := 0
	for ; i < len(p.events); i++ {
		if !p.events[i].Time().Before(until) {
			break
		}
	}
	if i > 0 {
		taken = make([]rrweb.Event, i)
		copy(taken, p.events[:i])
		clear(p.events[:i])
		p.events = p.events[i:]
	}
	p.mu.Unlock()

	for _, ev := range taken {
		fn(ev)
	}
}

// Len returns the number of queued events.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Dropped returns how many events were rejected because the buffer was full.
func (p *Pending) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Clear discards every queued event.
func (p *Pending) Clear() {
	p.mu.Lock()
	clear(p.events)
	p.events = nil
	p.mu.Unlock()
}
