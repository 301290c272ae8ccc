package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/replaycap/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorder sessions found in the cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := session.ListActive(GetConfig().CacheDir)
		if err != nil {
			return err
		}
		if len(states) == 0 {
			cmd.Println("no active session")
			return nil
		}

		for _, s := range states {
			lifecycle := string(s.Lifecycle)
			if !processAlive(s.PID) {
				lifecycle = "stale"
			}
			cmd.Printf("Replay: %s\n", s.ReplayID)
			cmd.Printf("  State: %s\n", lifecycle)
			cmd.Printf("  PID: %d\n", s.PID)
			cmd.Printf("  Started: %s\n", s.StartedAt.Format(time.RFC3339))
			cmd.Printf("  Duration: %s\n", time.Since(s.StartedAt).Round(time.Second).String())
			cmd.Printf("  Segment: %d (since %s)\n", s.SegmentIndex, s.SegmentStart.Format(time.RFC3339))
			cmd.Printf("  Recorder: %dx%d @ %d fps\n", s.Recorder.Width, s.Recorder.Height, s.Recorder.FrameRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
