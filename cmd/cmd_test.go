package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/replaycap/internal/config"
	"github.com/fakeyudi/replaycap/internal/replay"
	"github.com/fakeyudi/replaycap/internal/session"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags restores every flag to its default so runs don't leak into
// each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// testEnv isolates HOME and the cache directory, returning the cache dir the
// commands will use.
func testEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	return filepath.Join(tmp, "cache", "replaycap")
}

// writeState persists a session state as a recorder would.
func writeState(t *testing.T, cacheDir, replayID string, pid int, lifecycle session.Lifecycle) {
	t.Helper()
	dir := filepath.Join(cacheDir, replay.DirName(replayID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	now := time.Now().UTC()
	st := &session.State{
		ReplayID:     replayID,
		SegmentStart: now,
		StartedAt:    now,
		Lifecycle:    lifecycle,
		PID:          pid,
		Recorder:     config.Defaults().Recorder,
	}
	if err := session.NewStore(dir).Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
