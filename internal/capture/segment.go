package capture

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/fakeyudi/replaycap/internal/breadcrumb"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// cut finalizes [SegmentStart, SegmentStart+duration) and, on success,
// delivers it and advances the segment clock by the encoded duration.
// Executor only.
func (s *Strategy) cut(ctx context.Context, r *run, duration time.Duration) bool {
	seg, err := s.createSegment(ctx, r, r.state.SegmentStart, duration, r.state.SegmentIndex, r.state.Recorder)
	if err != nil {
		attrs := []any{"replay_id", r.state.ReplayID, "segment", r.state.SegmentIndex, "err", err}
		if errors.Is(err, replay.ErrBufferEmpty) {
			s.log.Debug("capture: no frames for segment, skipping boundary", attrs...)
		} else {
			s.log.Warn("capture: failed to create segment", attrs...)
		}
		return false
	}

	s.deliver(ctx, r, seg)
	r.state.SegmentIndex++
	r.state.SegmentStart = r.state.SegmentStart.Add(seg.Video.Duration)
	s.publish(r)
	s.persist(r)
	return true
}

// flushUntil finalizes everything recorded before end: whole segments first,
// then the shorter remainder. Executor only.
func (s *Strategy) flushUntil(ctx context.Context, r *run, end time.Time) {
	for end.Sub(r.state.SegmentStart) >= s.opts.SegmentDuration {
		if !s.cut(ctx, r, s.opts.SegmentDuration) {
			return
		}
	}
	if rest := end.Sub(r.state.SegmentStart); rest > 0 {
		s.cut(ctx, r, rest)
	}
}

// createSegment encodes the window and assembles its timeline. Pending
// events are only consumed once the video exists.
func (s *Strategy) createSegment(ctx context.Context, r *run, start time.Time, duration time.Duration, index int, rec config.Recorder) (replay.Segment, error) {
	video, err := r.store.Encode(ctx, replay.EncodeRequest{
		Start:        start,
		Duration:     duration,
		SegmentIndex: index,
		Width:        rec.Width,
		Height:       rec.Height,
		FrameRate:    rec.FrameRate,
		BitRate:      rec.BitRate,
	})
	if err != nil {
		return replay.Segment{}, err
	}
	if video.Path == "" || video.Duration <= 0 || video.FrameCount <= 0 {
		return replay.Segment{}, replay.ErrEncodingFailed
	}
	end := start.Add(video.Duration)

	payload := []rrweb.Event{
		&rrweb.MetaEvent{Timestamp: start, Width: rec.Width, Height: rec.Height},
		&rrweb.VideoEvent{
			Timestamp:     start,
			SegmentID:     index,
			Size:          video.Size,
			Duration:      video.Duration,
			Encoding:      orDefault(video.Encoding, "mjpeg"),
			Container:     orDefault(video.Container, "mjpeg"),
			Width:         rec.Width,
			Height:        rec.Height,
			FrameCount:    video.FrameCount,
			FrameRateType: "constant",
			FrameRate:     rec.FrameRate,
		},
	}

	var urls []string
	if s.opts.Breadcrumbs != nil {
		for _, b := range s.opts.Breadcrumbs.EventsInWindow(start, end) {
			ev, ok := s.opts.Converter.Convert(b)
			if !ok {
				continue
			}
			if url, ok := breadcrumb.NavigationURL(ev); ok {
				urls = append(urls, url)
			}
			payload = append(payload, ev)
		}
	}

	stale := 0
	r.pending.Rotate(end, func(ev rrweb.Event) {
		if ev.Time().Before(start) {
			stale++
			return
		}
		payload = append(payload, ev)
	})
	if stale > 0 {
		s.log.Debug("capture: dropped events older than segment", "replay_id", r.state.ReplayID, "segment", index, "count", stale)
	}

	rrweb.SortByTime(payload)

	return replay.Segment{
		Metadata: replay.SegmentMetadata{
			ReplayID:             r.state.ReplayID,
			SegmentID:            index,
			Type:                 replay.TypeSession,
			Timestamp:            end,
			ReplayStartTimestamp: start,
			URLs:                 urls,
		},
		Video:   video,
		Payload: payload,
	}, nil
}

// deliver hands seg to the sink and removes whatever video file it left.
func (s *Strategy) deliver(ctx context.Context, r *run, seg replay.Segment) {
	if err := s.opts.Sink.Submit(ctx, seg); err != nil {
		s.log.Warn("capture: failed to submit segment",
			"replay_id", r.state.ReplayID, "segment", seg.Metadata.SegmentID, "err", err)
	} else {
		s.log.Info("capture: segment created",
			"replay_id", r.state.ReplayID, "segment", seg.Metadata.SegmentID,
			"duration", seg.Video.Duration, "frames", seg.Video.FrameCount, "events", len(seg.Payload))
	}
	if err := os.Remove(seg.Video.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("capture: failed to delete video", "path", seg.Video.Path, "err", err)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
