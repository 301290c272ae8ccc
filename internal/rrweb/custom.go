package rrweb

import (
	"encoding/json"
	"fmt"
	"time"
)

// Custom event tags.
const (
	VideoTag      = "video"
	BreadcrumbTag = "breadcrumb"
)

// MetaEvent announces the recorded viewport.
type MetaEvent struct {
	Timestamp time.Time
	Href      string
	Width     int
	Height    int
}

type metaData struct {
	Href   string `json:"href"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

func (e *MetaEvent) Type() EventType { return Meta }
func (e *MetaEvent) Time() time.Time { return e.Timestamp }

func (e *MetaEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Type:      Meta,
		Timestamp: Millis(e.Timestamp),
		Data:      metaData{Href: e.Href, Height: e.Height, Width: e.Width},
	})
}

// VideoEvent describes the segment's video artifact.
type VideoEvent struct {
	Timestamp     time.Time
	SegmentID     int
	Size          int64
	Duration      time.Duration
	Encoding      string
	Container     string
	Width         int
	Height        int
	FrameCount    int
	FrameRateType string
	FrameRate     int
	Left          int
	Top           int
}

type videoPayload struct {
	SegmentID     int    `json:"segmentId"`
	Size          int64  `json:"size"`
	Duration      int64  `json:"duration"`
	Encoding      string `json:"encoding"`
	Container     string `json:"container"`
	Height        int    `json:"height"`
	Width         int    `json:"width"`
	FrameCount    int    `json:"frameCount"`
	FrameRateType string `json:"frameRateType"`
	FrameRate     int    `json:"frameRate"`
	Left          int    `json:"left"`
	Top           int    `json:"top"`
}

type customData struct {
	Tag     string `json:"tag"`
	Payload any    `json:"payload"`
}

func (e *VideoEvent) Type() EventType { return Custom }
func (e *VideoEvent) Time() time.Time { return e.Timestamp }

func (e *VideoEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{
		Type:      Custom,
		Timestamp: Millis(e.Timestamp),
		Data: customData{Tag: VideoTag, Payload: videoPayload{
			SegmentID:     e.SegmentID,
			Size:          e.Size,
			Duration:      e.Duration.Milliseconds(),
			Encoding:      e.Encoding,
			Container:     e.Container,
			Height:        e.Height,
			Width:         e.Width,
			FrameCount:    e.FrameCount,
			FrameRateType: e.FrameRateType,
			FrameRate:     e.FrameRate,
			Left:          e.Left,
			Top:           e.Top,
		}},
	})
}

func decodeVideo(ts time.Time, raw json.RawMessage) (Event, error) {
	var p videoPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode video event: %w", err)
	}
	return &VideoEvent{
		Timestamp:     ts,
		SegmentID:     p.SegmentID,
		Size:          p.Size,
		Duration:      time.Duration(p.Duration) * time.Millisecond,
		Encoding:      p.Encoding,
		Container:     p.Container,
		Width:         p.Width,
		Height:        p.Height,
		FrameCount:    p.FrameCount,
		FrameRateType: p.FrameRateType,
		FrameRate:     p.FrameRate,
		Left:          p.Left,
		Top:           p.Top,
	}, nil
}

// BreadcrumbEvent carries a diagnostic breadcrumb on the timeline.
type BreadcrumbEvent struct {
	Timestamp time.Time
	Kind      string // breadcrumb type, "default" when empty
	Category  string
	Message   string
	Level     string
	Data      map[string]any
}

type breadcrumbPayload struct {
	Type      string         `json:"type"`
	Timestamp float64        `json:"timestamp"` // epoch seconds
	Category  string         `json:"category"`
	Message   string         `json:"message,omitempty"`
	Level     string         `json:"level,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func (e *BreadcrumbEvent) Type() EventType { return Custom }
func (e *BreadcrumbEvent) Time() time.Time { return e.Timestamp }

func (e *BreadcrumbEvent) MarshalJSON() ([]byte, error) {
	kind := e.Kind
	if kind == "" {
		kind = "default"
	}
	return json.Marshal(envelope{
		Type:      Custom,
		Timestamp: Millis(e.Timestamp),
		Data: customData{Tag: BreadcrumbTag, Payload: breadcrumbPayload{
			Type:      kind,
			Timestamp: float64(Millis(e.Timestamp)) / 1000,
			Category:  e.Category,
			Message:   e.Message,
			Level:     e.Level,
			Data:      e.Data,
		}},
	})
}

func decodeBreadcrumb(ts time.Time, raw json.RawMessage) (Event, error) {
	var p breadcrumbPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode breadcrumb event: %w", err)
	}
	return &BreadcrumbEvent{
		Timestamp: ts,
		Kind:      p.Type,
		Category:  p.Category,
		Message:   p.Message,
		Level:     p.Level,
		Data:      p.Data,
	}, nil
}
