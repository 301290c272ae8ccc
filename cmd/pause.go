package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var controlReplayID string

func signalCommand(use, short, verb string, sig func() os.Signal) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := targetSession(GetConfig().CacheDir, controlReplayID)
			if err != nil {
				return err
			}
			if err := sendSignal(st.PID, sig()); err != nil {
				return fmt.Errorf("signalling pid %d: %w", st.PID, err)
			}
			cmd.Printf("%s session %s (pid %d).\n", verb, st.ReplayID, st.PID)
			return nil
		},
	}
}

var pauseCmd = signalCommand("pause", "Pause the running recorder", "Pausing",
	func() os.Signal { return pauseSignal })

var resumeCmd = signalCommand("resume", "Resume a paused recorder", "Resuming",
	func() os.Signal { return resumeSignal })

func init() {
	for _, c := range []*cobra.Command{pauseCmd, resumeCmd} {
		c.Flags().StringVar(&controlReplayID, "replay-id", "", "session to signal (default: most recent)")
		rootCmd.AddCommand(c)
	}
}
