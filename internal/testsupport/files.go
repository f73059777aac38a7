package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteArtifact creates videosDir/<jobID>_<name> holding size bytes, the
// layout yt-dlp produces for the download output template. An empty jobID
// writes name as-is.
func WriteArtifact(t testing.TB, videosDir, jobID, name string, size int) string {
	t.Helper()

	if jobID != "" {
		name = jobID + "_" + name
	}
	path := filepath.Join(videosDir, name)
	if err := os.MkdirAll(videosDir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", videosDir, err)
	}
	if size < 1 {
		size = 1
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'v'}, size), 0o644); err != nil {
		t.Fatalf("write artifact %s: %v", path, err)
	}
	return path
}
