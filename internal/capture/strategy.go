// Package capture turns a stream of frames and input events into replay
// segments. A Strategy runs one session at a time; all work on a session is
// serialized through that session's executor.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fakeyudi/replaycap/internal/buffer"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/executor"
	"github.com/fakeyudi/replaycap/internal/gesture"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/session"
)

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("session already in progress")

	// ErrNoSession is returned by Sync when nothing is recording.
	ErrNoSession = errors.New("no active session")
)

// Strategy is the session-replay capture orchestrator.
type Strategy struct {
	opts Options
	log  *slog.Logger

	mu       sync.Mutex // guards the fields below, never session state
	run      *run
	recorder config.Recorder
	disabled bool

	status atomic.Pointer[session.State]
}

// run is one recording session. state and pausedAt are owned by exec.
type run struct {
	state    session.State
	pausedAt time.Time
	captured bool // a frame has been stored this session

	dir      string
	store    FrameStore
	states   session.Store
	exec     *executor.Executor
	pending  *buffer.Pending
	gestures *gesture.Coalescer
	released sync.Once
}

// New creates an idle Strategy.
func New(opts Options) (*Strategy, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	s := &Strategy{opts: opts, log: opts.Logger, recorder: opts.Recorder}
	s.status.Store(&session.State{Lifecycle: session.Idle})
	return s, nil
}

// Start begins a session. segmentIndex is the index of the first segment;
// an empty replayID selects a fresh one. With cleanupOld set, directories
// left behind by other sessions are removed in the background.
func (s *Strategy) Start(segmentIndex int, replayID string, cleanupOld bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return replay.ErrConfigurationUnavailable
	}
	if s.run != nil {
		return ErrSessionActive
	}
	rec := s.recorder
	if err := rec.Validate(); err != nil {
		s.disabled = true
		s.log.Error("capture: recorder configuration unavailable, recording disabled", "err", err)
		return fmt.Errorf("%w: %v", replay.ErrConfigurationUnavailable, err)
	}

	if replayID == "" {
		replayID = replay.NewID()
	}
	dir := filepath.Join(s.opts.CacheDir, replay.DirName(replayID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = &replay.IOError{Op: "mkdir", Path: dir, Err: err}
		s.log.Error("capture: failed to create session directory", "err", err)
		return err
	}
	store, err := s.opts.Stores(dir, rec)
	if err != nil {
		os.RemoveAll(dir)
		s.log.Error("capture: failed to create frame store", "replay_id", replayID, "err", err)
		return fmt.Errorf("creating frame store: %w", err)
	}

	now := s.opts.Clock.Now()
	r := &run{
		state: session.State{
			ReplayID:     replayID,
			SegmentIndex: segmentIndex,
			SegmentStart: now,
			StartedAt:    now,
			Lifecycle:    session.Recording,
			PID:          os.Getpid(),
			Recorder:     rec,
		},
		dir:      dir,
		store:    store,
		states:   session.NewStore(dir),
		exec:     executor.New(replay.DirName(replayID), s.log),
		pending:  buffer.NewPending(s.opts.EventBufferCapacity),
		gestures: gesture.NewCoalescer(rec.ScaleX, rec.ScaleY),
	}
	s.run = r
	s.publish(r)

	if cleanupOld {
		r.exec.Submit(func(context.Context) {
			keep := replay.DirName(replayID)
			RemoveSessionDirs(s.opts.CacheDir, func(name string) bool { return name == keep }, s.log)
		})
	}
	r.exec.Submit(func(context.Context) { s.persist(r) })

	s.log.Info("capture: recording started",
		"replay_id", replayID, "segment", segmentIndex,
		"width", rec.Width, "height", rec.Height, "frame_rate", rec.FrameRate)
	return nil
}

// Pause stops the frame source. Frames stamped after the pause are dropped
// and no segment boundary is taken until Resume.
func (s *Strategy) Pause() {
	r := s.current()
	if r == nil {
		return
	}
	if s.opts.Source != nil {
		s.opts.Source.Pause()
	}
	stamp := s.opts.Clock.Now()
	r.exec.Submit(func(context.Context) {
		if r.state.Lifecycle != session.Recording {
			return
		}
		r.state.Lifecycle = session.Paused
		r.pausedAt = stamp
		s.publish(r)
		s.persist(r)
		s.log.Info("capture: paused", "replay_id", r.state.ReplayID, "segment", r.state.SegmentIndex)
	})
}

// Resume restarts the current segment at the resume instant, so the paused
// interval belongs to no segment, then re-enables the frame source.
func (s *Strategy) Resume() {
	r := s.current()
	if r == nil {
		return
	}
	stamp := s.opts.Clock.Now()
	r.exec.Submit(func(context.Context) {
		if r.state.Lifecycle != session.Paused {
			return
		}
		r.state.Lifecycle = session.Recording
		r.state.SegmentStart = stamp
		r.pausedAt = time.Time{}
		s.publish(r)
		s.persist(r)
		s.log.Info("capture: resumed", "replay_id", r.state.ReplayID, "segment", r.state.SegmentIndex)
	})
	if s.opts.Source != nil {
		s.opts.Source.Resume()
	}
}

// Stop finalizes the partial segment, deletes the session directory and
// returns the strategy to idle. Queued work drains first; if it does not
// finish within the shutdown grace it is cancelled and ErrShutdownTimeout
// is returned. The directory is released either way.
func (s *Strategy) Stop() error {
	s.mu.Lock()
	r := s.run
	s.run = nil
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	stopAt := s.opts.Clock.Now()
	r.exec.Submit(func(ctx context.Context) {
		if r.state.Lifecycle == session.Stopped {
			return
		}
		end := stopAt
		if r.state.Lifecycle == session.Paused {
			end = r.pausedAt
		}
		s.flushUntil(ctx, r, end)
		r.state.Lifecycle = session.Stopped
		s.release(r)
	})

	err := r.exec.Shutdown(s.opts.ShutdownGrace)
	s.release(r)
	s.status.Store(&session.State{Lifecycle: session.Idle})
	if err != nil {
		s.log.Warn("capture: stop did not drain in time", "replay_id", r.state.ReplayID, "err", err)
		return err
	}
	s.log.Info("capture: recording stopped", "replay_id", r.state.ReplayID)
	return nil
}

// OnScreenshot accepts a captured frame. A zero timestamp is replaced by the
// current time. Safe to call from any goroutine.
func (s *Strategy) OnScreenshot(frame replay.Frame) {
	if frame.Timestamp.IsZero() {
		frame.Timestamp = s.opts.Clock.Now()
	}
	r := s.current()
	if r == nil {
		return
	}
	r.exec.Submit(func(ctx context.Context) { s.onFrame(ctx, r, frame) })
}

// OnInteraction converts raw pointer input and queues the resulting events
// for the next segment. Input is ignored while paused.
func (s *Strategy) OnInteraction(ev gesture.PointerEvent) {
	stamp := s.opts.Clock.Now()
	r := s.current()
	if r == nil || s.Status().Lifecycle != session.Recording {
		return
	}
	events := r.gestures.Convert(ev, stamp)
	if n := r.pending.AddAll(events); n < len(events) {
		s.log.Debug("capture: event buffer full, dropping interaction",
			"replay_id", r.state.ReplayID, "dropped", len(events)-n)
	}
}

// OnConfigurationChanged switches the recorder configuration. The partial
// segment recorded so far is finalized with the previous configuration
// before the new one takes effect.
func (s *Strategy) OnConfigurationChanged(rec config.Recorder) error {
	if err := rec.Validate(); err != nil {
		s.log.Warn("capture: ignoring invalid recorder configuration", "err", err)
		return fmt.Errorf("%w: %v", replay.ErrConfigurationUnavailable, err)
	}

	s.mu.Lock()
	s.recorder = rec
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}

	r.gestures.SetScale(rec.ScaleX, rec.ScaleY)
	stamp := s.opts.Clock.Now()
	r.exec.Submit(func(ctx context.Context) {
		switch r.state.Lifecycle {
		case session.Recording:
			s.flushUntil(ctx, r, stamp)
		case session.Paused:
			s.flushUntil(ctx, r, r.pausedAt)
		default:
			return
		}
		r.state.Recorder = rec
		s.publish(r)
		s.persist(r)
		s.log.Info("capture: recorder configuration changed",
			"replay_id", r.state.ReplayID, "width", rec.Width, "height", rec.Height, "frame_rate", rec.FrameRate)
	})
	return nil
}

// Status returns the latest session snapshot.
func (s *Strategy) Status() session.State {
	return *s.status.Load()
}

// DroppedEvents reports how many interaction events the running session
// rejected because its event buffer was full.
func (s *Strategy) DroppedEvents() int64 {
	r := s.current()
	if r == nil {
		return 0
	}
	return r.pending.Dropped()
}

// Sync waits until all work queued on the running session so far is done.
func (s *Strategy) Sync(ctx context.Context) error {
	r := s.current()
	if r == nil {
		return ErrNoSession
	}
	return r.exec.Sync(ctx)
}

func (s *Strategy) current() *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// onFrame runs on the executor.
func (s *Strategy) onFrame(ctx context.Context, r *run, frame replay.Frame) {
	stamp := frame.Timestamp
	switch r.state.Lifecycle {
	case session.Stopped, session.Idle:
		return
	case session.Paused:
		if !stamp.Before(r.pausedAt) {
			return
		}
	}

	if err := r.store.AppendFrame(frame); err != nil {
		s.log.Warn("capture: failed to store frame", "replay_id", r.state.ReplayID, "err", err)
		return
	}
	first := !r.captured
	r.captured = true
	if r.state.Lifecycle != session.Recording {
		return
	}

	if first && stamp.Sub(r.state.SegmentStart) >= s.opts.SegmentDuration {
		// nothing was on screen before the first frame
		s.log.Debug("capture: first frame after a full segment, moving segment start",
			"replay_id", r.state.ReplayID, "from", r.state.SegmentStart, "to", stamp)
		r.state.SegmentStart = stamp
		s.publish(r)
		s.persist(r)
	}

	if stamp.Sub(r.state.SegmentStart) >= s.opts.SegmentDuration {
		s.cut(ctx, r, s.opts.SegmentDuration)
	}

	maxEnd := r.state.StartedAt.Add(s.opts.SessionDuration)
	if !stamp.Before(maxEnd) {
		s.expire(ctx, r, maxEnd)
	}
}

// expire ends a session that reached the maximum duration. Runs on the
// executor, so the executor is shut down from another goroutine.
func (s *Strategy) expire(ctx context.Context, r *run, maxEnd time.Time) {
	s.log.Info("capture: maximum session duration reached", "replay_id", r.state.ReplayID)
	s.flushUntil(ctx, r, maxEnd)
	r.state.Lifecycle = session.Stopped
	s.release(r)

	s.mu.Lock()
	detached := s.run == r
	if detached {
		s.run = nil
	}
	s.mu.Unlock()
	if !detached {
		// Stop already owns the teardown
		return
	}
	s.status.Store(&session.State{Lifecycle: session.Idle})
	go r.exec.Shutdown(s.opts.ShutdownGrace)
	if s.opts.OnStop != nil {
		go s.opts.OnStop(r.state.ReplayID)
	}
}

// release closes the store and deletes the session directory, once.
func (s *Strategy) release(r *run) {
	r.released.Do(func() {
		if err := r.store.Close(); err != nil {
			s.log.Warn("capture: failed to close frame store", "replay_id", r.state.ReplayID, "err", err)
		}
		r.pending.Clear()
		if err := os.RemoveAll(r.dir); err != nil {
			s.log.Warn("capture: failed to delete session directory",
				"err", &replay.IOError{Op: "remove", Path: r.dir, Err: err})
		}
	})
}

// publish snapshots the run state for Status. Executor or Start only.
func (s *Strategy) publish(r *run) {
	snap := r.state
	s.status.Store(&snap)
}

// persist writes the run state next to the frames. Executor only.
func (s *Strategy) persist(r *run) {
	if r.state.Lifecycle == session.Stopped {
		return
	}
	if err := r.states.Save(&r.state); err != nil {
		s.log.Warn("capture: failed to persist session state", "replay_id", r.state.ReplayID, "err", err)
	}
}
