package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/session"
)

// generateTime produces an arbitrary time.Time value.
// We truncate to second precision to keep comparisons independent of
// monotonic clock readings.
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 1_700_000_000).Draw(t, label)
	return time.Unix(sec, 0).UTC()
}

// generateState produces an arbitrary State value.
func generateState(t *rapid.T) *session.State {
	return &session.State{
		ReplayID:     rapid.StringMatching(`[0-9a-f]{32}`).Draw(t, "replay_id"),
		SegmentIndex: rapid.IntRange(0, 10_000).Draw(t, "segment_index"),
		SegmentStart: generateTime(t, "segment_start"),
		StartedAt:    generateTime(t, "started_at"),
		Lifecycle:    rapid.SampledFrom([]session.Lifecycle{session.Recording, session.Paused, session.Stopped}).Draw(t, "lifecycle"),
		PID:          rapid.IntRange(0, 1<<22).Draw(t, "pid"),
		Recorder: config.Recorder{
			Width:     rapid.IntRange(1, 4096).Draw(t, "width"),
			Height:    rapid.IntRange(1, 4096).Draw(t, "height"),
			FrameRate: rapid.IntRange(1, 60).Draw(t, "frame_rate"),
			BitRate:   rapid.IntRange(0, 10_000_000).Draw(t, "bit_rate"),
			ScaleX:    1,
			ScaleY:    0.5,
		},
	}
}

// Feature: replaycap, Property 6: Session state persistence round-trip
func TestStatePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := session.NewStore(dir)

	rapid.Check(t, func(t *rapid.T) {
		original := generateState(t)

		if err := store.Save(original); err != nil {
			t.Fatalf("Save: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if loaded.ReplayID != original.ReplayID {
			t.Errorf("ReplayID mismatch: got %q, want %q", loaded.ReplayID, original.ReplayID)
		}
		if loaded.SegmentIndex != original.SegmentIndex {
			t.Errorf("SegmentIndex mismatch: got %d, want %d", loaded.SegmentIndex, original.SegmentIndex)
		}
		if !loaded.SegmentStart.Equal(original.SegmentStart) {
			t.Errorf("SegmentStart mismatch: got %v, want %v", loaded.SegmentStart, original.SegmentStart)
		}
		if !loaded.StartedAt.Equal(original.StartedAt) {
			t.Errorf("StartedAt mismatch: got %v, want %v", loaded.StartedAt, original.StartedAt)
		}
		if loaded.Lifecycle != original.Lifecycle {
			t.Errorf("Lifecycle mismatch: got %q, want %q", loaded.Lifecycle, original.Lifecycle)
		}
		if loaded.PID != original.PID {
			t.Errorf("PID mismatch: got %d, want %d", loaded.PID, original.PID)
		}
		if loaded.Recorder != original.Recorder {
			t.Errorf("Recorder mismatch: got %+v, want %+v", loaded.Recorder, original.Recorder)
		}
	})
}

// TestLoadReturnsErrNoSession verifies that Load returns ErrNoSession when no
// state file exists on disk.
func TestLoadReturnsErrNoSession(t *testing.T) {
	store := session.NewStore(t.TempDir())

	_, err := store.Load()
	if err == nil {
		t.Fatal("expected ErrNoSession, got nil")
	}
	if !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := session.NewStore(t.TempDir())
	if err := store.Save(&session.State{ReplayID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession after delete, got %v", err)
	}
}

// TestSaveFailurePropagatesError verifies that Save returns an error when the
// session directory is missing.
func TestSaveFailurePropagatesError(t *testing.T) {
	store := session.NewStore(filepath.Join(t.TempDir(), "gone"))
	if err := store.Save(&session.State{ReplayID: "x"}); err == nil {
		t.Fatal("expected error saving into a missing directory, got nil")
	}
}

func TestListActive(t *testing.T) {
	cache := t.TempDir()

	base := time.Unix(1_700_000_000, 0).UTC()
	for i, id := range []string{"bbb", "aaa"} {
		dir := filepath.Join(cache, replay.DirName(id))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		st := &session.State{ReplayID: id, StartedAt: base.Add(time.Duration(-i) * time.Minute), Lifecycle: session.Recording}
		if err := session.NewStore(dir).Save(st); err != nil {
			t.Fatal(err)
		}
	}
	// a session dir with no state and an unrelated dir are ignored
	os.MkdirAll(filepath.Join(cache, replay.DirName("empty")), 0o755)
	os.MkdirAll(filepath.Join(cache, "outbox"), 0o755)

	states, err := session.ListActive(cache)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("want 2 states, got %d", len(states))
	}
	if states[0].ReplayID != "aaa" || states[1].ReplayID != "bbb" {
		t.Errorf("unexpected order: %s, %s", states[0].ReplayID, states[1].ReplayID)
	}

	missing, err := session.ListActive(filepath.Join(cache, "nope"))
	if err != nil || missing != nil {
		t.Errorf("missing cache dir: got %v, %v", missing, err)
	}
}
