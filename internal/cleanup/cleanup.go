// Package cleanup reclaims disk space from interrupted artifact writes.
//
// store.Local streams every upload into a temp file under <root>/.tmp and
// renames it into place only once the payload is complete. A crash or kill
// between those two steps leaves the temp file behind. RunPeriodic removes
// any entry in the temp directory whose mtime is older than the configured TTL.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// Sweep scans tmpDir and removes entries older than ttl, returning how many
// were removed. It is safe to call concurrently with active uploads: a temp
// file being written has a recent mtime and is left untouched.
func Sweep(fsys afero.Fs, tmpDir string, ttl time.Duration, logger *slog.Logger) int {
	entries, err := afero.ReadDir(fsys, tmpDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cleanup: readdir failed", "dir", tmpDir, "err", err)
		}
		return 0
	}

	cutoff := time.Now().Add(-ttl)
	var removed int
	var reclaimed int64
	for _, e := range entries {
		if !e.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(tmpDir, e.Name())
		age := time.Since(e.ModTime()).Round(time.Minute)
		if err := fsys.RemoveAll(path); err != nil {
			logger.Warn("cleanup: remove failed", "name", e.Name(), "err", err)
			continue
		}
		removed++
		reclaimed += e.Size()
		logger.Info("cleanup: removed stale temp file", "name", e.Name(), "age", age)
	}
	if removed > 0 {
		logger.Info("cleanup: cycle complete", "removed", removed,
			"reclaimed", humanize.IBytes(uint64(reclaimed)))
	}
	return removed
}

// RunPeriodic starts a background goroutine that calls Sweep on every interval
// until ctx is cancelled. A first pass runs immediately at startup to flush
// temp files left over from a previous crash or restart.
func RunPeriodic(ctx context.Context, fsys afero.Fs, tmpDir string, ttl, interval time.Duration, logger *slog.Logger) {
	go func() {
		Sweep(fsys, tmpDir, ttl, logger)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				Sweep(fsys, tmpDir, ttl, logger)
			case <-ctx.Done():
				return
			}
		}
	}()
}
