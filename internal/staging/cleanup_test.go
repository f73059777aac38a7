package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytarchiver/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, "", logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleRemovesOldTemporaryFiles(t *testing.T) {
	dir := t.TempDir()

	oldPart := filepath.Join(dir, "job1_Title.mp4.part")
	oldFrag := filepath.Join(dir, "job1_Title.f137.mp4")
	recentPart := filepath.Join(dir, "job2_Title.mp4.part")
	activePart := filepath.Join(dir, "job3_Title.mp4.part")
	finished := filepath.Join(dir, "job4_Title.mp4")

	writeAged(t, oldPart, 48*time.Hour)
	writeAged(t, oldFrag, 48*time.Hour)
	writeAged(t, recentPart, time.Minute)
	writeAged(t, activePart, 48*time.Hour)
	writeAged(t, finished, 48*time.Hour)

	result := CleanStale(context.Background(), dir, DefaultMaxAge, "job3", logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removals, got %v", result.Removed)
	}

	for _, gone := range []string{oldPart, oldFrag} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	for _, kept := range []string{recentPart, activePart, finished} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should still exist: %v", kept, err)
		}
	}
}
