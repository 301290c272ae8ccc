// Package framestore buffers captured frames on disk and stitches the frames
// of a time window into a motion-JPEG video.
package framestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
)

const (
	frameExt = ".jpg"
	videoExt = ".mjpeg"

	// Encoding is the codec name reported for produced videos.
	Encoding = "mjpeg"

	fileModePerm = 0o644
)

var errClosed = errors.New("frame store closed")

type frameRef struct {
	ts   time.Time
	path string
}

// Store keeps one session's frames as <unixMillis>.jpg files in its directory.
// Safe for concurrent use, though the recorder drives it from one goroutine.
type Store struct {
	dir string
	cfg config.Recorder
	log *slog.Logger

	mu     sync.Mutex
	frames []frameRef // ordered by ts
	closed bool
}

// New opens a store in dir, creating it if needed. Frame files left in dir
// by an earlier run are indexed again.
func New(dir string, cfg config.Recorder, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &replay.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	s := &Store{dir: dir, cfg: cfg, log: log}
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the session directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Len returns the number of buffered frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// AppendFrame writes f to disk and indexes it by timestamp.
func (s *Store) AppendFrame(f replay.Frame) error {
	if len(f.Data) == 0 {
		return errors.New("framestore: empty frame")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	path := filepath.Join(s.dir, strconv.FormatInt(f.Timestamp.UnixMilli(), 10)+frameExt)
	if err := os.WriteFile(path, f.Data, fileModePerm); err != nil {
		return &replay.IOError{Op: "write", Path: path, Err: err}
	}

	ref := frameRef{ts: f.Timestamp, path: path}
	i := sort.Search(len(s.frames), func(i int) bool { return !s.frames[i].ts.Before(f.Timestamp) })
	switch {
	case i < len(s.frames) && s.frames[i].ts.UnixMilli() == f.Timestamp.UnixMilli():
		// same file name; the newer bytes replaced the old ones
		s.frames[i] = ref
	case i == len(s.frames):
		s.frames = append(s.frames, ref)
	default:
		s.frames = append(s.frames, frameRef{})
		copy(s.frames[i+1:], s.frames[i:])
		s.frames[i] = ref
	}
	return nil
}

// Encode writes the frames captured in [req.Start, req.End()) as
// <SegmentIndex>.mjpeg at a constant frame rate, repeating the latest frame
// for slots in which nothing was captured. Leading slots show the newest
// frame captured before req.Start, so a window is only empty when nothing was
// captured before its end. Once the video is written every frame before the
// window end is released except the newest, which carries into the next
// window. The returned duration never exceeds req.Duration.
func (s *Store) Encode(ctx context.Context, req replay.EncodeRequest) (replay.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return replay.Video{}, errClosed
	}

	start, end := req.Start, req.End()
	first := sort.Search(len(s.frames), func(i int) bool { return !s.frames[i].ts.Before(start) })
	last := sort.Search(len(s.frames), func(i int) bool { return !s.frames[i].ts.Before(end) })
	if first > 0 {
		// the screen still shows the last frame captured before the window
		first--
	}
	window := s.frames[first:last]

	if len(window) == 0 || req.Duration <= 0 {
		return replay.Video{}, replay.ErrBufferEmpty
	}

	fps := req.FrameRate
	if fps <= 0 {
		fps = s.cfg.FrameRate
	}
	if fps <= 0 {
		fps = 1
	}
	step := time.Second / time.Duration(fps)
	slots := int((req.Duration + step - 1) / step)

	path := filepath.Join(s.dir, strconv.Itoa(req.SegmentIndex)+videoExt)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileModePerm)
	if err != nil {
		return replay.Video{}, &replay.IOError{Op: "create", Path: path, Err: err}
	}

	w := &mjpegWriter{out: out}
	err = s.writeSlots(ctx, w, window, start, step, slots)
	if cerr := w.close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return replay.Video{}, err
		}
		return replay.Video{}, fmt.Errorf("%w: %v", replay.ErrEncodingFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		os.Remove(path)
		return replay.Video{}, replay.ErrEncodingFailed
	}

	duration := time.Duration(slots) * step
	if duration > req.Duration {
		duration = req.Duration
	}
	s.log.Debug("framestore: encoded window",
		"segment", req.SegmentIndex, "frames", len(window), "slots", slots, "size", info.Size())
	s.releaseBefore(last - 1)

	return replay.Video{
		Path:       path,
		Size:       info.Size(),
		FrameCount: slots,
		Duration:   duration,
		Encoding:   Encoding,
		Container:  Encoding,
	}, nil
}

func (s *Store) writeSlots(ctx context.Context, w *mjpegWriter, window []frameRef, start time.Time, step time.Duration, slots int) error {
	cur := 0
	for i := 0; i < slots; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		slotEnd := start.Add(time.Duration(i+1) * step)
		// latest frame captured before the slot closes; the first frame
		// also stands in for any leading slots
		for cur+1 < len(window) && window[cur+1].ts.Before(slotEnd) {
			cur++
		}
		if err := w.writeFrame(window[cur].path); err != nil {
			return err
		}
	}
	return nil
}

// releaseBefore deletes every frame indexed before position n.
func (s *Store) releaseBefore(n int) {
	for _, f := range s.frames[:n] {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("framestore: failed to delete frame", "path", f.path, "err", err)
		}
	}
	clear(s.frames[:n])
	s.frames = s.frames[n:]
}

// Close drops the frame index. Files stay until the session directory is
// removed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.frames = nil
	return nil
}

func (s *Store) reindex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return &replay.IOError{Op: "readdir", Path: s.dir, Err: err}
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, frameExt) {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(name, frameExt), 10, 64)
		if err != nil {
			continue
		}
		s.frames = append(s.frames, frameRef{ts: time.UnixMilli(ms), path: filepath.Join(s.dir, name)})
	}
	sort.Slice(s.frames, func(i, j int) bool { return s.frames[i].ts.Before(s.frames[j].ts) })
	return nil
}

// mjpegWriter appends JPEG images to a stream, memory-mapping each source
// file. Consecutive writes of the same file reuse the mapping.
type mjpegWriter struct {
	out     *os.File
	curPath string
	curFile *os.File
	curMap  mmap.MMap
}

func (w *mjpegWriter) writeFrame(path string) error {
	if path != w.curPath {
		if err := w.unmap(); err != nil {
			return err
		}
		if err := w.mapFile(path); err != nil {
			return err
		}
	}
	_, err := w.out.Write(w.curMap)
	return err
}

func (w *mjpegWriter) mapFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() == 0 {
		f.Close()
		return fmt.Errorf("frame %s is empty", path)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap error: %w", err)
	}
	w.curPath, w.curFile, w.curMap = path, f, m
	return nil
}

func (w *mjpegWriter) unmap() error {
	if w.curMap == nil {
		return nil
	}
	err := w.curMap.Unmap()
	if cerr := w.curFile.Close(); err == nil {
		err = cerr
	}
	w.curPath, w.curFile, w.curMap = "", nil, nil
	return err
}

func (w *mjpegWriter) close() error {
	err := w.unmap()
	if cerr := w.out.Close(); err == nil {
		err = cerr
	}
	return err
}
