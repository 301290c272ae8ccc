// Package replay holds the domain types shared by the capture strategy and
// its collaborators: frames, encode requests, videos and finished segments.
package replay

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// SessionDirPrefix prefixes every per-session cache directory.
const SessionDirPrefix = "replay_"

// TypeSession is the replay type reported for continuously recorded sessions.
const TypeSession = "session"

// Frame is a single captured screen image.
type Frame struct {
	Data      []byte    `json:"-"` // JPEG-encoded image
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}

// EncodeRequest asks a frame store for a video covering
// [Start, Start+Duration).
type EncodeRequest struct {
	Start        time.Time
	Duration     time.Duration
	SegmentIndex int
	Width        int
	Height       int
	FrameRate    int
	BitRate      int
}

// End returns the exclusive end of the requested window.
func (r EncodeRequest) End() time.Time {
	return r.Start.Add(r.Duration)
}

// Video describes an encoded artifact on disk. Duration may be shorter than
// the requested window.
type Video struct {
	Path       string        `json:"path"`
	Size       int64         `json:"size"`
	FrameCount int           `json:"frame_count"`
	Duration   time.Duration `json:"duration"`
	Encoding   string        `json:"encoding"`
	Container  string        `json:"container"`
}

// SegmentMetadata is the replay event sent alongside each segment.
type SegmentMetadata struct {
	ReplayID             string    `json:"replay_id"`
	SegmentID            int       `json:"segment_id"`
	Type                 string    `json:"replay_type"`
	Timestamp            time.Time `json:"timestamp"`              // end of the segment window
	ReplayStartTimestamp time.Time `json:"replay_start_timestamp"` // start of the segment window
	URLs                 []string  `json:"urls,omitempty"`
}

// Segment is an immutable, finished slice of a recorded session.
type Segment struct {
	Metadata SegmentMetadata
	Video    Video
	Payload  []rrweb.Event
}

// Start returns the inclusive start of the segment window.
func (s Segment) Start() time.Time { return s.Metadata.ReplayStartTimestamp }

// End returns the exclusive end of the segment window.
func (s Segment) End() time.Time { return s.Metadata.Timestamp }

// NewID returns a fresh replay identifier: 32 lowercase hex characters.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// DirName returns the cache directory name for a replay id.
func DirName(replayID string) string {
	return SessionDirPrefix + replayID
}

// IsSessionDir reports whether a cache directory entry belongs to a replay.
func IsSessionDir(name string) bool {
	return strings.HasPrefix(name, SessionDirPrefix) && len(name) > len(SessionDirPrefix)
}

// IDFromDir extracts the replay id from a session directory name.
func IDFromDir(name string) string {
	return strings.TrimPrefix(name, SessionDirPrefix)
}
