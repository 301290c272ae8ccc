package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var stopFlags struct {
	replayID string
	wait     time.Duration
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running recorder, finalizing its last segment",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := targetSession(GetConfig().CacheDir, stopFlags.replayID)
		if err != nil {
			return err
		}
		if err := sendSignal(st.PID, stopSignal); err != nil {
			return fmt.Errorf("signalling pid %d: %w", st.PID, err)
		}
		cmd.Printf("Stopping session %s (pid %d).\n", st.ReplayID, st.PID)

		if stopFlags.wait <= 0 {
			return nil
		}
		deadline := time.Now().Add(stopFlags.wait)
		for processAlive(st.PID) {
			if time.Now().After(deadline) {
				return fmt.Errorf("recorder pid %d still running after %s", st.PID, stopFlags.wait)
			}
			time.Sleep(100 * time.Millisecond)
		}
		cmd.Println("Session stopped.")
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopFlags.replayID, "replay-id", "", "session to stop (default: most recent)")
	stopCmd.Flags().DurationVar(&stopFlags.wait, "wait", 30*time.Second, "how long to wait for the recorder to exit (0: don't wait)")
	rootCmd.AddCommand(stopCmd)
}
