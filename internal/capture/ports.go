package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fakeyudi/replaycap/internal/breadcrumb"
	"github.com/fakeyudi/replaycap/internal/clock"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/rrweb"
)

// FrameStore buffers one session's frames and encodes windows of them.
type FrameStore interface {
	AppendFrame(f replay.Frame) error
	// Encode returns replay.ErrBufferEmpty when no frame falls in the window.
	Encode(ctx context.Context, req replay.EncodeRequest) (replay.Video, error)
	Close() error
}

// StoreFactory opens the frame store for a session directory.
type StoreFactory func(dir string, cfg config.Recorder) (FrameStore, error)

// Sink accepts finished segments. Submit must take ownership of the video
// file before it returns; the strategy removes whatever is left afterwards.
type Sink interface {
	Submit(ctx context.Context, seg replay.Segment) error
}

// BreadcrumbSource answers which breadcrumbs were recorded in [start, end).
type BreadcrumbSource interface {
	EventsInWindow(start, end time.Time) []breadcrumb.Breadcrumb
}

// Converter turns a breadcrumb into a timeline event, or reports false.
type Converter interface {
	Convert(b breadcrumb.Breadcrumb) (rrweb.Event, bool)
}

// FrameSource is the capture mechanism producing frames.
type FrameSource interface {
	Pause()
	Resume()
}

// Options configures a Strategy.
type Options struct {
	CacheDir            string
	SegmentDuration     time.Duration
	SessionDuration     time.Duration
	ShutdownGrace       time.Duration
	EventBufferCapacity int
	Recorder            config.Recorder

	Stores      StoreFactory
	Sink        Sink
	Breadcrumbs BreadcrumbSource // optional
	Converter   Converter        // defaults to breadcrumb.DefaultConverter
	Source      FrameSource      // optional
	Clock       clock.Clock      // defaults to clock.Real
	Logger      *slog.Logger

	// OnStop is called once a session ends on its own, after reaching the
	// maximum session duration.
	OnStop func(replayID string)
}

// OptionsFromConfig fills the timing and recorder fields from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		CacheDir:            cfg.CacheDir,
		SegmentDuration:     cfg.SegmentDuration.D(),
		SessionDuration:     cfg.SessionDuration.D(),
		ShutdownGrace:       cfg.ShutdownGrace.D(),
		EventBufferCapacity: cfg.EventBufferCapacity,
		Recorder:            cfg.Recorder,
	}
}

func (o *Options) validate() error {
	switch {
	case o.CacheDir == "":
		return errors.New("capture: cache dir is required")
	case o.Stores == nil:
		return errors.New("capture: store factory is required")
	case o.Sink == nil:
		return errors.New("capture: sink is required")
	case o.SegmentDuration <= 0:
		return errors.New("capture: segment duration must be positive")
	}
	if o.SessionDuration <= 0 {
		o.SessionDuration = time.Hour
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	if o.Converter == nil {
		o.Converter = breadcrumb.DefaultConverter{}
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}
