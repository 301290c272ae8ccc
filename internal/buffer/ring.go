package buffer

import (
	"sync"
	"time"
)

// Timed is anything carrying a timestamp.
type Timed interface {
	Time() time.Time
}

// Ring is a fixed-capacity circular buffer. When full the oldest entry is
// overwritten.
type Ring[T Timed] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
	head     int // index where the next write goes
}

// NewRing creates a Ring holding at most capacity entries (minimum 1).
func NewRing[T Timed](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{entries: make([]T, 0, capacity), capacity: capacity}
}

// Push adds an entry, evicting the oldest one if at capacity.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, v)
	} else {
		r.entries[r.head] = v
	}
	r.head = (r.head + 1) % r.capacity
}

// Snapshot returns all entries oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

// Window returns entries with start <= Time() < end, oldest first.
func (r *Ring[T]) Window(start, end time.Time) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, v := range r.orderedLocked() {
		ts := v.Time()
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Ring[T]) orderedLocked() []T {
	out := make([]T, 0, len(r.entries))
	if len(r.entries) < r.capacity {
		return append(out, r.entries...)
	}
	out = append(out, r.entries[r.head:]...)
	return append(out, r.entries[:r.head]...)
}
