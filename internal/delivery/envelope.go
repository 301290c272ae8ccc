// Package delivery hands finished replay segments to their destination: a
// local outbox directory or a Redis stream.
package delivery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

const (
	replayEventType = "replay_event"

	EventFile     = "replay_event.json"
	RecordingFile = "replay_recording.json"
	VideoFile     = "video.mjpeg"
)

// Envelope is the serialized form of a segment.
type Envelope struct {
	Category  DataCategory
	Event     []byte // replay_event JSON
	Recording []byte // header line followed by the rrweb event array
	VideoPath string
}

// replayEvent is the wire form of replay.SegmentMetadata. Timestamps are
// epoch seconds.
type replayEvent struct {
	Type                 string   `json:"type"`
	ReplayID             string   `json:"replay_id"`
	SegmentID            int      `json:"segment_id"`
	ReplayType           string   `json:"replay_type"`
	Timestamp            float64  `json:"timestamp"`
	ReplayStartTimestamp float64  `json:"replay_start_timestamp"`
	URLs                 []string `json:"urls"`
}

type recordingHeader struct {
	SegmentID int `json:"segment_id"`
}

// NewEnvelope serializes seg.
func NewEnvelope(seg replay.Segment) (Envelope, error) {
	urls := seg.Metadata.URLs
	if urls == nil {
		urls = []string{}
	}
	event, err := json.MarshalIndent(replayEvent{
		Type:                 replayEventType,
		ReplayID:             seg.Metadata.ReplayID,
		SegmentID:            seg.Metadata.SegmentID,
		ReplayType:           seg.Metadata.Type,
		Timestamp:            seconds(seg.Metadata.Timestamp),
		ReplayStartTimestamp: seconds(seg.Metadata.ReplayStartTimestamp),
		URLs:                 urls,
	}, "", "  ")
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal replay event: %w", err)
	}

	header, err := json.Marshal(recordingHeader{SegmentID: seg.Metadata.SegmentID})
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal recording header: %w", err)
	}
	payload := seg.Payload
	if payload == nil {
		payload = []rrweb.Event{}
	}
	events, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal recording: %w", err)
	}

	var rec bytes.Buffer
	rec.Write(header)
	rec.WriteByte('\n')
	rec.Write(events)

	return Envelope{
		Category:  CategoryReplay,
		Event:     event,
		Recording: rec.Bytes(),
		VideoPath: seg.Video.Path,
	}, nil
}

// ParseEvent decodes a replay_event document.
func ParseEvent(data []byte) (replay.SegmentMetadata, error) {
	var ev replayEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return replay.SegmentMetadata{}, fmt.Errorf("failed to parse replay event: %w", err)
	}
	if ev.Type != replayEventType {
		return replay.SegmentMetadata{}, fmt.Errorf("not a replay event: type %q", ev.Type)
	}
	return replay.SegmentMetadata{
		ReplayID:             ev.ReplayID,
		SegmentID:            ev.SegmentID,
		Type:                 ev.ReplayType,
		Timestamp:            fromSeconds(ev.Timestamp),
		ReplayStartTimestamp: fromSeconds(ev.ReplayStartTimestamp),
		URLs:                 ev.URLs,
	}, nil
}

// ParseRecording splits a replay_recording document into its segment id and
// events.
func ParseRecording(data []byte) (int, []rrweb.Event, error) {
	line, rest, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return 0, nil, errors.New("failed to parse replay recording: missing header line")
	}
	var header recordingHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return 0, nil, fmt.Errorf("failed to parse replay recording header: %w", err)
	}
	events, err := rrweb.DecodeAll(rest)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse replay recording: %w", err)
	}
	return header.SegmentID, events, nil
}

func seconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func fromSeconds(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000))).UTC()
}
