package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
)

// SweepTemp removes intermediate artifacts left behind by runs that were
// interrupted before their cleanup could fire, e.g. on a crash or power
// loss. Called once at startup, before any pipeline runs.
func SweepTemp(tempDir string, logger *slog.Logger) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read temp dir", "path", tempDir, "error", err)
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("cannot remove stale artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("swept stale intermediate artifacts", "dir", tempDir, "count", removed)
	}
}
