// Package rrweb models the timeline events carried in a replay segment's
// recording payload. Events serialize to the rrweb wire shape: a numeric
// event type, an epoch-millisecond timestamp and a type-specific data object.
package rrweb

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EventType is the rrweb top-level event type. It serializes as its ordinal.
type EventType int

const (
	DomContentLoaded EventType = iota
	Load
	FullSnapshot
	IncrementalSnapshot
	Meta
	Custom
	Plugin
)

var eventTypeNames = [...]string{
	"DomContentLoaded", "Load", "FullSnapshot", "IncrementalSnapshot", "Meta", "Custom", "Plugin",
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

// Event is any timestamped record placed into a segment payload.
type Event interface {
	Type() EventType
	Time() time.Time
}

// envelope is the common wire shape shared by all events.
type envelope struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data"`
}

type rawEnvelope struct {
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// SortByTime orders events by timestamp, keeping insertion order for ties.
func SortByTime(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time().Before(events[j].Time())
	})
}

// Decode parses a single serialized event back into its concrete type.
func Decode(data []byte) (Event, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rrweb event: %w", err)
	}
	ts := FromMillis(raw.Timestamp)

	switch raw.Type {
	case Meta:
		var d metaData
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return nil, fmt.Errorf("decode meta event: %w", err)
		}
		return &MetaEvent{Timestamp: ts, Href: d.Href, Width: d.Width, Height: d.Height}, nil

	case Custom:
		var tagged struct {
			Tag     string          `json:"tag"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw.Data, &tagged); err != nil {
			return nil, fmt.Errorf("decode custom event: %w", err)
		}
		switch tagged.Tag {
		case VideoTag:
			return decodeVideo(ts, tagged.Payload)
		case BreadcrumbTag:
			return decodeBreadcrumb(ts, tagged.Payload)
		}
		return nil, fmt.Errorf("decode custom event: unknown tag %q", tagged.Tag)

	case IncrementalSnapshot:
		var src struct {
			Source IncrementalSource `json:"source"`
		}
		if err := json.Unmarshal(raw.Data, &src); err != nil {
			return nil, fmt.Errorf("decode incremental event: %w", err)
		}
		switch src.Source {
		case SourceMouseInteraction:
			return decodeInteraction(ts, raw.Data)
		case SourceTouchMove:
			return decodeMove(ts, raw.Data)
		}
		return nil, fmt.Errorf("decode incremental event: unsupported source %d", src.Source)
	}
	return nil, fmt.Errorf("decode rrweb event: unsupported type %s", raw.Type)
}

// DecodeAll parses a JSON array of events.
func DecodeAll(data []byte) ([]Event, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode rrweb payload: %w", err)
	}
	events := make([]Event, 0, len(raws))
	for i, r := range raws {
		ev, err := Decode(r)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
