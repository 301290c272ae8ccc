package capture

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fakeyudi/replaycap/internal/replay"
)

// RemoveSessionDirs deletes every replay_* directory in cacheDir for which
// keep returns false. Failures are logged and skipped. It returns the names
// of the removed directories.
func RemoveSessionDirs(cacheDir string, keep func(name string) bool, log *slog.Logger) []string {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("capture: cleanup could not list cache directory",
				"err", &replay.IOError{Op: "readdir", Path: cacheDir, Err: err})
		}
		return nil
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !replay.IsSessionDir(name) || keep(name) {
			continue
		}
		path := filepath.Join(cacheDir, name)
		if err := os.RemoveAll(path); err != nil {
			log.Warn("capture: cleanup failed", "err", &replay.IOError{Op: "remove", Path: path, Err: err})
			continue
		}
		log.Debug("capture: removed stale session directory", "path", path)
		removed = append(removed, name)
	}
	return removed
}
