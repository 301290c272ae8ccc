// Package gesture reduces raw pointer input into rrweb interaction events.
// Discrete transitions (down, up, cancel) pass straight through; continuous
// movement is debounced and batched.
package gesture

import (
	"sort"
	"sync"
	"time"

	"github.com/fakeyudi/replaycap/internal/rrweb"
)

const (
	// MoveDebounce is the minimum spacing between accepted move samples.
	MoveDebounce = 50 * time.Millisecond
	// MoveBatchSpan is how much movement accumulates before a batch is emitted.
	MoveBatchSpan = 500 * time.Millisecond
)

// Action is the kind of a raw pointer event.
type Action int

const (
	Down Action = iota
	PointerDown
	Move
	Up
	PointerUp
	Cancel
)

var actionNames = map[string]Action{
	"down":         Down,
	"pointer_down": PointerDown,
	"move":         Move,
	"up":           Up,
	"pointer_up":   PointerUp,
	"cancel":       Cancel,
}

// ParseAction maps a lowercase action name ("down", "move", ...) to an Action.
func ParseAction(s string) (Action, bool) {
	a, ok := actionNames[s]
	return a, ok
}

// Pointer is the position of one active pointer on the capture surface.
type Pointer struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PointerEvent is one raw input sample. For Move, Pointers carries every
// active pointer; when empty the single PointerID/X/Y triple is used.
type PointerEvent struct {
	Action    Action
	PointerID int
	X         float64
	Y         float64
	Pointers  []Pointer
}

// Coalescer holds the per-session gesture state. Safe for concurrent use.
type Coalescer struct {
	mu       sync.Mutex
	scaleX   float64
	scaleY   float64
	baseline time.Time // zero when no batch is accumulating
	lastMove time.Time // last accepted move sample
	tracked  map[int][]rrweb.Position
}

// NewCoalescer creates a Coalescer mapping surface coordinates into video
// space by the given scale factors.
func NewCoalescer(scaleX, scaleY float64) *Coalescer {
	return &Coalescer{
		scaleX:  scaleX,
		scaleY:  scaleY,
		tracked: make(map[int][]rrweb.Position),
	}
}

// SetScale swaps the coordinate scale factors for subsequent events.
func (c *Coalescer) SetScale(scaleX, scaleY float64) {
	c.mu.Lock()
	c.scaleX, c.scaleY = scaleX, scaleY
	c.mu.Unlock()
}

// Convert turns ev observed at now into zero or more timeline events.
func (c *Coalescer) Convert(ev PointerEvent, now time.Time) []rrweb.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Action {
	case Move:
		return c.move(ev, now)

	case Down, PointerDown:
		if ev.Action == Down {
			c.resetLocked()
			clear(c.tracked)
		}
		c.tracked[ev.PointerID] = make([]rrweb.Position, 0, 10)
		return []rrweb.Event{c.interaction(rrweb.TouchStart, ev, now)}

	case Up, PointerUp:
		delete(c.tracked, ev.PointerID)
		return []rrweb.Event{c.interaction(rrweb.TouchEnd, ev, now)}

	case Cancel:
		clear(c.tracked)
		c.resetLocked()
		return []rrweb.Event{c.interaction(rrweb.TouchCancel, ev, now)}
	}
	return nil
}

func (c *Coalescer) move(ev PointerEvent, now time.Time) []rrweb.Event {
	if !c.lastMove.IsZero() && c.lastMove.Add(MoveDebounce).After(now) {
		return nil
	}
	c.lastMove = now

	if c.baseline.IsZero() {
		c.baseline = now
	}
	offset := now.Sub(c.baseline)

	pointers := ev.Pointers
	if len(pointers) == 0 {
		pointers = []Pointer{{ID: ev.PointerID, X: ev.X, Y: ev.Y}}
	}
	for _, p := range pointers {
		positions, ok := c.tracked[p.ID]
		if !ok {
			// no down seen for this pointer
			continue
		}
		c.tracked[p.ID] = append(positions, rrweb.Position{
			X:          p.X * c.scaleX,
			Y:          p.Y * c.scaleY,
			TimeOffset: offset,
		})
	}

	if offset <= MoveBatchSpan {
		return nil
	}

	ids := make([]int, 0, len(c.tracked))
	for id, positions := range c.tracked {
		if len(positions) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	out := make([]rrweb.Event, 0, len(ids))
	for _, id := range ids {
		src := c.tracked[id]
		positions := make([]rrweb.Position, len(src))
		for i, p := range src {
			p.TimeOffset -= offset
			positions[i] = p
		}
		out = append(out, &rrweb.InteractionMoveEvent{Timestamp: now, PointerID: id, Positions: positions})
		c.tracked[id] = src[:0]
	}
	c.baseline = time.Time{}
	return out
}

func (c *Coalescer) interaction(kind rrweb.InteractionType, ev PointerEvent, now time.Time) rrweb.Event {
	return &rrweb.InteractionEvent{
		Timestamp:   now,
		Interaction: kind,
		X:           ev.X * c.scaleX,
		Y:           ev.Y * c.scaleY,
		PointerID:   ev.PointerID,
		PointerType: rrweb.PointerTypeTouch,
	}
}

func (c *Coalescer) resetLocked() {
	c.baseline = time.Time{}
	for id, positions := range c.tracked {
		c.tracked[id] = positions[:0]
	}
}
