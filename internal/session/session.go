// Package session persists the state of a running recorder next to its frame
// cache, so other processes can find and signal it.
package session

import (
	"time"

	"github.com/fakeyudi/replaycap/internal/config"
)

// Lifecycle is the capture state of a session.
type Lifecycle string

const (
	Idle      Lifecycle = "idle"
	Recording Lifecycle = "recording"
	Paused    Lifecycle = "paused"
	Stopped   Lifecycle = "stopped"
)

// Active reports whether frames may still be captured in this state.
func (l Lifecycle) Active() bool {
	return l == Recording || l == Paused
}

// State is a snapshot of one recorder's session.
type State struct {
	ReplayID     string          `json:"replay_id"`
	SegmentIndex int             `json:"segment_id"`
	SegmentStart time.Time       `json:"segment_timestamp"`
	StartedAt    time.Time       `json:"started_at"`
	Lifecycle    Lifecycle       `json:"lifecycle"`
	PID          int             `json:"pid,omitempty"`
	Recorder     config.Recorder `json:"recorder"`
}
