package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// DirSink writes each segment to <root>/<replay id>/<segment id>/.
type DirSink struct {
	root string
	log  *slog.Logger
}

// NewDirSink creates the outbox root if needed.
func NewDirSink(root string, log *slog.Logger) (*DirSink, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &replay.IOError{Op: "mkdir", Path: root, Err: err}
	}
	return &DirSink{root: root, log: log}, nil
}

// SegmentDir returns where a segment is written.
func (d *DirSink) SegmentDir(replayID string, segmentID int) string {
	return filepath.Join(d.root, replayID, strconv.Itoa(segmentID))
}

// Submit writes the envelope files and moves the video into place.
func (d *DirSink) Submit(ctx context.Context, seg replay.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := NewEnvelope(seg)
	if err != nil {
		return err
	}

	dir := d.SegmentDir(seg.Metadata.ReplayID, seg.Metadata.SegmentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &replay.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := writeFile(filepath.Join(dir, EventFile), env.Event); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, RecordingFile), env.Recording); err != nil {
		return err
	}
	if env.VideoPath != "" {
		if err := moveFile(env.VideoPath, filepath.Join(dir, VideoFile)); err != nil {
			return err
		}
	}

	d.log.Debug("delivery: segment written", "dir", dir, "category", env.Category)
	return nil
}

// Delivered is a segment read back from an outbox directory.
type Delivered struct {
	Dir       string
	Metadata  replay.SegmentMetadata
	Events    []rrweb.Event
	VideoPath string // empty when the segment has no video file
	VideoSize int64
}

// LoadSegment reads a segment directory written by DirSink.
func LoadSegment(dir string) (*Delivered, error) {
	eventData, err := os.ReadFile(filepath.Join(dir, EventFile))
	if err != nil {
		return nil, fmt.Errorf("reading replay event: %w", err)
	}
	meta, err := ParseEvent(eventData)
	if err != nil {
		return nil, err
	}

	recData, err := os.ReadFile(filepath.Join(dir, RecordingFile))
	if err != nil {
		return nil, fmt.Errorf("reading replay recording: %w", err)
	}
	segmentID, events, err := ParseRecording(recData)
	if err != nil {
		return nil, err
	}
	if segmentID != meta.SegmentID {
		return nil, fmt.Errorf("segment id mismatch: event says %d, recording says %d", meta.SegmentID, segmentID)
	}

	out := &Delivered{Dir: dir, Metadata: meta, Events: events}
	videoPath := filepath.Join(dir, VideoFile)
	if info, err := os.Stat(videoPath); err == nil {
		out.VideoPath = videoPath
		out.VideoSize = info.Size()
	}
	return out, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &replay.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return &replay.IOError{Op: "rename", Path: src, Err: err}
	}

	in, err := os.Open(src)
	if err != nil {
		return &replay.IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return &replay.IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return &replay.IOError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &replay.IOError{Op: "close", Path: dst, Err: err}
	}
	return os.Remove(src)
}
