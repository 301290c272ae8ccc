package delivery

import (
	"context"
	"errors"

	"github.com/fakeyudi/replaycap/internal/replay"
)

// Sink receives finished segments.
type Sink interface {
	Submit(ctx context.Context, seg replay.Segment) error
}

// Tee submits every segment to each sink in order. Sinks that consume the
// video file (DirSink moves it) must come last.
type Tee []Sink

func (t Tee) Submit(ctx context.Context, seg replay.Segment) error {
	var errs []error
	for _, s := range t {
		if err := s.Submit(ctx, seg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
