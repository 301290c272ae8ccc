package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fakeyudi/replaycap/internal/replay"
)

// StateFile is the name of the persisted state inside a session directory.
const StateFile = "segment.json"

// ErrNoSession is returned by Load when no state file exists on disk.
var ErrNoSession = errors.New("no active session")

// Store persists a State to disk.
type Store interface {
	Save(s *State) error
	Load() (*State, error) // returns ErrNoSession if none exists
	Delete() error
}

// diskStore is the concrete Store that writes into a session directory.
type diskStore struct {
	path string // full path to segment.json
}

// NewStore returns a Store writing <sessionDir>/segment.json. The directory
// must already exist.
func NewStore(sessionDir string) Store {
	return &diskStore{path: filepath.Join(sessionDir, StateFile)}
}

// Save marshals s to JSON and writes it atomically via a temp file + os.Rename.
func (d *diskStore) Save(s *State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "segment-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load reads and unmarshals the state file.
// Returns ErrNoSession if the file does not exist.
func (d *diskStore) Load() (*State, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &s, nil
}

// Delete removes the state file from disk.
func (d *diskStore) Delete() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// ListActive loads the state of every session directory under cacheDir.
// Directories without a readable state file are skipped. The result is
// ordered by start time, oldest first.
func ListActive(cacheDir string) ([]*State, error) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache directory: %w", err)
	}

	var states []*State
	for _, e := range entries {
		if !e.IsDir() || !replay.IsSessionDir(e.Name()) {
			continue
		}
		st, err := NewStore(filepath.Join(cacheDir, e.Name())).Load()
		if err != nil {
			continue
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.Before(states[j].StartedAt)
	})
	return states, nil
}
