// Package source feeds a capture session from the outside world: screen
// frames dropped into a directory and input records read as JSON lines.
package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/replaycap/internal/clock"
	"github.com/fakeyudi/replaycap/internal/replay"
)

// JPEGQuality is used when re-encoding PNG frames.
const JPEGQuality = 85

// maxSeen bounds how many delivered paths are remembered.
const maxSeen = 512

// DirSource watches a directory and turns every new JPEG or PNG image into a
// frame. While paused, new images are consumed but not delivered.
type DirSource struct {
	dir    string
	handle func(replay.Frame)
	clock  clock.Clock
	log    *slog.Logger

	paused atomic.Bool

	mu   sync.Mutex
	seen *seenSet
}

// NewDirSource creates a source delivering frames to handle.
func NewDirSource(dir string, handle func(replay.Frame), clk clock.Clock, log *slog.Logger) *DirSource {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &DirSource{dir: dir, handle: handle, clock: clk, log: log, seen: newSeenSet(maxSeen)}
}

func (d *DirSource) Pause()  { d.paused.Store(true) }
func (d *DirSource) Resume() { d.paused.Store(false) }

// Paused reports whether delivery is suppressed.
func (d *DirSource) Paused() bool { return d.paused.Load() }

// Run watches the directory until ctx is cancelled. The ready callback, if
// non-nil, is invoked once the watch is registered.
func (d *DirSource) Run(ctx context.Context, ready func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(d.dir); err != nil {
		return fmt.Errorf("watching %s: %w", d.dir, err)
	}
	d.log.Debug("source: watching frames", "dir", d.dir)
	if ready != nil {
		ready()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				d.consider(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				d.mu.Lock()
				d.seen.remove(event.Name)
				d.mu.Unlock()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("source: watcher error", "err", err)
		}
	}
}

// consider delivers path once it decodes. A file still being written fails
// to decode and is retried on its next write event.
func (d *DirSource) consider(path string) {
	if !isImage(path) {
		return
	}
	d.mu.Lock()
	done := d.seen.has(path)
	d.mu.Unlock()
	if done {
		return
	}

	frame, err := ReadFrame(path)
	if err != nil {
		d.log.Debug("source: frame not ready", "path", path, "err", err)
		return
	}
	d.mu.Lock()
	d.seen.add(path)
	d.mu.Unlock()

	if d.paused.Load() {
		return
	}
	frame.Timestamp = d.clock.Now()
	d.handle(frame)
}

// seenSet remembers the most recently delivered paths, forgetting the oldest
// beyond limit. Not safe for concurrent use.
type seenSet struct {
	limit int
	gen   uint64
	paths map[string]uint64
	order []seenEntry // oldest first, may hold removed paths
}

type seenEntry struct {
	path string
	gen  uint64
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{limit: limit, paths: make(map[string]uint64)}
}

func (s *seenSet) has(path string) bool {
	_, ok := s.paths[path]
	return ok
}

func (s *seenSet) add(path string) {
	s.gen++
	s.paths[path] = s.gen
	s.order = append(s.order, seenEntry{path: path, gen: s.gen})
	for len(s.paths) > s.limit {
		e := s.order[0]
		s.order = s.order[1:]
		if s.paths[e.path] == e.gen {
			delete(s.paths, e.path)
		}
	}
}

func (s *seenSet) remove(path string) {
	delete(s.paths, path)
	if len(s.order) <= 2*s.limit {
		return
	}
	live := s.order[:0]
	for _, e := range s.order {
		if s.paths[e.path] == e.gen {
			live = append(live, e)
		}
	}
	clear(s.order[len(live):])
	s.order = live
}

func (s *seenSet) size() int { return len(s.paths) }

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// ReadFrame loads an image file as a JPEG frame. The timestamp is left zero.
func ReadFrame(path string) (replay.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return replay.Frame{}, err
	}
	return DecodeFrame(data)
}

// DecodeFrame accepts JPEG or PNG bytes; PNG is re-encoded as JPEG.
func DecodeFrame(data []byte) (replay.Frame, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return replay.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch format {
	case "jpeg":
		return replay.Frame{Data: data, Width: cfg.Width, Height: cfg.Height}, nil
	case "png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return replay.Frame{}, fmt.Errorf("decode frame: %w", err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return replay.Frame{}, fmt.Errorf("re-encode frame: %w", err)
		}
		return replay.Frame{Data: buf.Bytes(), Width: cfg.Width, Height: cfg.Height}, nil
	}
	return replay.Frame{}, fmt.Errorf("decode frame: unsupported format %q", format)
}
