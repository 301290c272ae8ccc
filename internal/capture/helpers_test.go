package capture_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/replaycap/internal/capture"
	"github.com/fakeyudi/replaycap/internal/clock"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/framestore"
	"github.com/fakeyudi/replaycap/internal/replay"
)

var t0 = time.UnixMilli(1_700_000_000_000).UTC()

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecorder() config.Recorder {
	return config.Recorder{Width: 320, Height: 640, FrameRate: 4, BitRate: 100_000, ScaleX: 1, ScaleY: 1}
}

// recordingSink keeps every submitted segment and the bytes of its video.
type recordingSink struct {
	mu       sync.Mutex
	segments []replay.Segment
	videos   [][]byte
}

func (s *recordingSink) Submit(_ context.Context, seg replay.Segment) error {
	data, _ := os.ReadFile(seg.Video.Path)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = append(s.segments, seg)
	s.videos = append(s.videos, data)
	return nil
}

func (s *recordingSink) all() []replay.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]replay.Segment(nil), s.segments...)
}

// fakeStore is an in-memory FrameStore. Like the disk store, a window with
// no frames of its own still encodes when an earlier frame exists.
type fakeStore struct {
	mu        sync.Mutex
	dir       string
	frames    []time.Time
	requests  []replay.EncodeRequest
	failNext  int
	block     bool
	closed    bool
	shortfall time.Duration // encoded videos come out this much shorter
}

func (f *fakeStore) AppendFrame(fr replay.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr.Timestamp)
	return nil
}

func (f *fakeStore) Encode(ctx context.Context, req replay.EncodeRequest) (replay.Video, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return replay.Video{}, ctx.Err()
	}
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return replay.Video{}, replay.ErrBufferEmpty
	}
	n, earlier := 0, false
	for _, ts := range f.frames {
		switch {
		case ts.Before(req.Start):
			earlier = true
		case ts.Before(req.End()):
			n++
		}
	}
	if n == 0 && earlier {
		n = 1
	}
	if n == 0 {
		return replay.Video{}, replay.ErrBufferEmpty
	}
	d := req.Duration - f.shortfall
	if d <= 0 {
		d = req.Duration
	}
	return replay.Video{
		Path:       filepath.Join(f.dir, fmt.Sprintf("%d.mjpeg", req.SegmentIndex)),
		Size:       int64(n),
		FrameCount: n,
		Duration:   d,
	}, nil
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type harness struct {
	strategy *capture.Strategy
	clock    *clock.Manual
	sink     *recordingSink
	cacheDir string

	mu     sync.Mutex
	stores []*fakeStore
}

type option func(*capture.Options)

// newHarness builds a strategy over fake stores. Pass withDiskStore to use
// the real framestore instead.
func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewManual(t0),
		sink:     &recordingSink{},
		cacheDir: t.TempDir(),
	}
	o := capture.Options{
		CacheDir:        h.cacheDir,
		SegmentDuration: 5 * time.Second,
		SessionDuration: time.Hour,
		ShutdownGrace:   5 * time.Second,
		Recorder:        testRecorder(),
		Sink:            h.sink,
		Clock:           h.clock,
		Logger:          quietLogger(),
		Stores: func(dir string, _ config.Recorder) (capture.FrameStore, error) {
			fs := &fakeStore{dir: dir}
			h.mu.Lock()
			h.stores = append(h.stores, fs)
			h.mu.Unlock()
			return fs, nil
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := capture.New(o)
	require.NoError(t, err)
	h.strategy = s
	return h
}

func withDiskStore(o *capture.Options) {
	log := o.Logger
	o.Stores = func(dir string, cfg config.Recorder) (capture.FrameStore, error) {
		fs, err := framestore.New(dir, cfg, log)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

func (h *harness) store(i int) *fakeStore {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stores[i]
}

// frame advances the clock to ms and delivers a frame stamped then.
func (h *harness) frame(ms int) {
	h.clock.Set(at(ms))
	h.strategy.OnScreenshot(replay.Frame{Data: []byte{0xFF, 0xD8, byte(ms), 0xFF, 0xD9}, Width: 320, Height: 640, Timestamp: at(ms)})
}

func (h *harness) frames(fromMs, toMs, stepMs int) {
	for ms := fromMs; ms < toMs; ms += stepMs {
		h.frame(ms)
	}
}

func (h *harness) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.strategy.Sync(ctx))
}
