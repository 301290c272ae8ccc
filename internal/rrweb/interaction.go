package rrweb

import (
	"encoding/json"
	"fmt"
	"time"
)

// IncrementalSource identifies the kind of an incremental snapshot.
type IncrementalSource int

const (
	SourceMutation IncrementalSource = iota
	SourceMouseMove
	SourceMouseInteraction
	SourceScroll
	SourceViewportResize
	SourceInput
	SourceTouchMove
)

// InteractionType is the kind of a discrete pointer interaction.
type InteractionType int

const (
	MouseUp InteractionType = iota
	MouseDown
	Click
	ContextMenu
	DblClick
	Focus
	Blur
	TouchStart
	TouchMoveDeparted
	TouchEnd
	TouchCancel
)

func (t InteractionType) String() string {
	switch t {
	case TouchStart:
		return "touch_start"
	case TouchEnd:
		return "touch_end"
	case TouchCancel:
		return "touch_cancel"
	case TouchMoveDeparted:
		return "touch_move_departed"
	}
	return fmt.Sprintf("interaction(%d)", int(t))
}

// PointerTypeTouch marks interactions produced by a touch screen.
const PointerTypeTouch = 2

// InteractionEvent is a discrete touch start/end/cancel.
type InteractionEvent struct {
	Timestamp   time.Time
	Interaction InteractionType
	ID          int
	X           float64
	Y           float64
	PointerID   int
	PointerType int
}

type interactionData struct {
	Source      IncrementalSource `json:"source"`
	Type        InteractionType   `json:"type"`
	ID          int               `json:"id"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	PointerType int               `json:"pointerType"`
	PointerID   int               `json:"pointerId"`
}

func (e *InteractionEvent) Type() EventType { return IncrementalSnapshot }
func (e *InteractionEvent) Time() time.Time { return e.Timestamp }

func (e *InteractionEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Type:      IncrementalSnapshot,
		Timestamp: Millis(e.Timestamp),
		Data: interactionData{
			Source:      SourceMouseInteraction,
			Type:        e.Interaction,
			ID:          e.ID,
			X:           e.X,
			Y:           e.Y,
			PointerType: e.PointerType,
			PointerID:   e.PointerID,
		},
	})
}

func decodeInteraction(ts time.Time, raw json.RawMessage) (Event, error) {
	var d interactionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode interaction event: %w", err)
	}
	return &InteractionEvent{
		Timestamp:   ts,
		Interaction: d.Type,
		ID:          d.ID,
		X:           d.X,
		Y:           d.Y,
		PointerID:   d.PointerID,
		PointerType: d.PointerType,
	}, nil
}

// Position is one sampled pointer location inside a move batch. TimeOffset
// is relative to the batch timestamp and is never positive.
type Position struct {
	ID         int           `json:"id"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	TimeOffset time.Duration `json:"-"`
}

type positionData struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	TimeOffset int64   `json:"timeOffset"`
}

// InteractionMoveEvent is a batch of sampled positions for one pointer.
type InteractionMoveEvent struct {
	Timestamp time.Time
	PointerID int
	Positions []Position
}

type moveData struct {
	Source    IncrementalSource `json:"source"`
	Positions []positionData    `json:"positions"`
	PointerID int               `json:"pointerId"`
}

func (e *InteractionMoveEvent) Type() EventType { return IncrementalSnapshot }
func (e *InteractionMoveEvent) Time() time.Time { return e.Timestamp }

// AbsoluteTimes reconstructs the capture time of every position.
func (e *InteractionMoveEvent) AbsoluteTimes() []time.Time {
	out := make([]time.Time, len(e.Positions))
	for i, p := range e.Positions {
		out[i] = e.Timestamp.Add(p.TimeOffset)
	}
	return out
}

func (e *InteractionMoveEvent) MarshalJSON() ([]byte, error) {
	positions := make([]positionData, len(e.Positions))
	for i, p := range e.Positions {
		positions[i] = positionData{ID: p.ID, X: p.X, Y: p.Y, TimeOffset: p.TimeOffset.Milliseconds()}
	}
	return json.Marshal(envelope{
		Type:      IncrementalSnapshot,
		Timestamp: Millis(e.Timestamp),
		Data:      moveData{Source: SourceTouchMove, Positions: positions, PointerID: e.PointerID},
	})
}

func decodeMove(ts time.Time, raw json.RawMessage) (Event, error) {
	var d moveData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode move event: %w", err)
	}
	positions := make([]Position, len(d.Positions))
	for i, p := range d.Positions {
		positions[i] = Position{ID: p.ID, X: p.X, Y: p.Y, TimeOffset: time.Duration(p.TimeOffset) * time.Millisecond}
	}
	return &InteractionMoveEvent{Timestamp: ts, PointerID: d.PointerID, Positions: positions}, nil
}
