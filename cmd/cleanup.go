package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/replaycap/internal/capture"
	"github.com/fakeyudi/replaycap/internal/session"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete session directories left behind by recorders that are no longer running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheDir := GetConfig().CacheDir
		keep := func(name string) bool {
			st, err := session.NewStore(filepath.Join(cacheDir, name)).Load()
			return err == nil && st.Lifecycle.Active() && processAlive(st.PID)
		}
		removed := capture.RemoveSessionDirs(cacheDir, keep, logger)
		for _, name := range removed {
			cmd.Printf("Removed %s\n", name)
		}
		cmd.Printf("%d stale session directories removed.\n", len(removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
