package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/replaycap/internal/breadcrumb"
	"github.com/fakeyudi/replaycap/internal/capture"
	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/delivery"
	"github.com/fakeyudi/replaycap/internal/framestore"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/source"
)

var startFlags struct {
	frames    string
	input     string
	replayID  string
	noCleanup bool
	duration  time.Duration
	width     int
	height    int
	frameRate int
	segment   time.Duration
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Record a session in the foreground until stopped",
	Long: `Record a session in the foreground.

Frames are read from image files created in --frames; touch, breadcrumb and
configuration records are read as JSON lines from --input ("-" for stdin).
SIGINT or SIGTERM stops the session, SIGUSR1 pauses it and SIGUSR2 resumes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()
		applyStartOverrides(&c)
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		live, err := liveSessions(c.CacheDir)
		if err != nil {
			return err
		}
		if len(live) > 0 {
			st := live[len(live)-1]
			return fmt.Errorf("%w (replay %s, pid %d, started at %s)",
				capture.ErrSessionActive, st.ReplayID, st.PID, st.StartedAt.Format(time.RFC3339))
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sink, closeSink, err := buildSink(ctx, c)
		if err != nil {
			return err
		}
		defer closeSink()

		crumbs := breadcrumb.NewRing(c.BreadcrumbCapacity)
		opts := capture.OptionsFromConfig(c)
		opts.Stores = func(dir string, rec config.Recorder) (capture.FrameStore, error) {
			return framestore.New(dir, rec, logger)
		}
		opts.Sink = sink
		opts.Breadcrumbs = crumbs
		opts.Logger = logger
		opts.OnStop = func(string) { cancel() }

		var strategy *capture.Strategy
		var frames *source.DirSource
		if startFlags.frames != "" {
			frames = source.NewDirSource(startFlags.frames, func(f replay.Frame) { strategy.OnScreenshot(f) }, nil, logger)
			opts.Source = frames
		}
		strategy, err = capture.New(opts)
		if err != nil {
			return err
		}

		if err := strategy.Start(0, startFlags.replayID, c.ShouldCleanupOld() && !startFlags.noCleanup); err != nil {
			return err
		}
		st := strategy.Status()
		cmd.Printf("Recording %s (pid %d).\n", st.ReplayID, st.PID)

		if frames != nil {
			go func() {
				if err := frames.Run(ctx, nil); err != nil {
					logger.Error("start: frame source failed", "err", err)
					cancel()
				}
			}()
		}
		if startFlags.input != "" {
			in, closeIn, err := openInput(cmd, startFlags.input)
			if err != nil {
				strategy.Stop()
				return err
			}
			defer closeIn()
			reader := source.NewInputReader(strategy, crumbs, nil, logger)
			go func() {
				if err := reader.Run(ctx, in); err != nil {
					logger.Warn("start: input reader failed", "err", err)
				}
			}()
		}

		waitForStop(ctx, strategy, startFlags.duration)

		if err := strategy.Stop(); err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
		cmd.Printf("Session %s stopped. Segments: %s\n", st.ReplayID, c.Outbox())
		return nil
	},
}

// waitForStop blocks until a stop signal, ctx cancellation or the optional
// duration elapses, handling pause and resume signals meanwhile.
func waitForStop(ctx context.Context, strategy *capture.Strategy, limit time.Duration) {
	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)
	defer signal.Stop(sigs)

	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case sig := <-sigs:
			switch {
			case pauseSignal != nil && sig == pauseSignal:
				strategy.Pause()
			case resumeSignal != nil && sig == resumeSignal:
				strategy.Resume()
			default:
				logger.Debug("start: stop requested", "signal", sig.String())
				return
			}
		}
	}
}

func buildSink(ctx context.Context, c config.Config) (capture.Sink, func(), error) {
	dir, err := delivery.NewDirSink(c.Outbox(), logger)
	if err != nil {
		return nil, nil, err
	}
	if c.Redis.Addr == "" {
		return dir, func() {}, nil
	}
	redisSink, err := delivery.NewRedisSink(ctx, c.Redis, logger)
	if err != nil {
		return nil, nil, err
	}
	// DirSink moves the video file, so it goes last.
	return delivery.Tee{redisSink, dir}, func() { redisSink.Close() }, nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func applyStartOverrides(c *config.Config) {
	if startFlags.width > 0 {
		c.Recorder.Width = startFlags.width
	}
	if startFlags.height > 0 {
		c.Recorder.Height = startFlags.height
	}
	if startFlags.frameRate > 0 {
		c.Recorder.FrameRate = startFlags.frameRate
	}
	if startFlags.segment > 0 {
		c.SegmentDuration = config.Duration(startFlags.segment)
	}
}

func init() {
	f := startCmd.Flags()
	f.StringVar(&startFlags.frames, "frames", "", "directory to watch for frame images")
	f.StringVar(&startFlags.input, "input", "", `JSON-lines input file, or "-" for stdin`)
	f.StringVar(&startFlags.replayID, "replay-id", "", "replay id to record under (default: generated)")
	f.BoolVar(&startFlags.noCleanup, "no-cleanup", false, "keep directories left by earlier sessions")
	f.DurationVar(&startFlags.duration, "duration", 0, "stop automatically after this long (0: until signalled)")
	f.IntVar(&startFlags.width, "width", 0, "video width (overrides config)")
	f.IntVar(&startFlags.height, "height", 0, "video height (overrides config)")
	f.IntVar(&startFlags.frameRate, "frame-rate", 0, "video frame rate (overrides config)")
	f.DurationVar(&startFlags.segment, "segment", 0, "segment duration (overrides config)")
	rootCmd.AddCommand(startCmd)
}
