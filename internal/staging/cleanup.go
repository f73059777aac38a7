package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ytarchiver/internal/extractor"
	"ytarchiver/internal/logging"
)

// DefaultMaxAge is how old an unclaimed temporary download must be before
// the startup sweep removes it.
const DefaultMaxAge = 24 * time.Hour

// CleanStaleResult contains the outcome of a stale artifact sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes temporary yt-dlp artifacts (partial downloads, format
// fragments, resume markers) in videosDir older than maxAge. Files belonging
// to activeJobID are left for crash recovery to handle.
func CleanStale(ctx context.Context, videosDir string, maxAge time.Duration, activeJobID string, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	videosDir = strings.TrimSpace(videosDir)
	if videosDir == "" {
		return result
	}

	entries, err := os.ReadDir(videosDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: videosDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	activePrefix := ""
	if activeJobID != "" {
		activePrefix = activeJobID + "_"
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		name := entry.Name()
		if entry.IsDir() || !extractor.IsTemporaryArtifact(name) {
			continue
		}
		if activePrefix != "" && strings.HasPrefix(name, activePrefix) {
			continue
		}

		path := filepath.Join(videosDir, name)
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale download artifact",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "artifact_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check videos_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale download artifact",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.Int64("size_bytes", info.Size()),
				logging.String(logging.FieldEventType, "artifact_cleanup"),
			)
		}
	}

	return result
}
