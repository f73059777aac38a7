package library_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytarchiver/internal/library"
	"ytarchiver/internal/services"
	"ytarchiver/internal/testsupport"
)

func openLibrary(t *testing.T) (*library.Library, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	lib, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib, cfg.Paths.VideosDir
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	return testsupport.WriteArtifact(t, dir, "", name, 2048)
}

func TestNewVideoClassifiesKind(t *testing.T) {
	dir := t.TempDir()
	audio := writeArtifact(t, dir, "a_song.mp3")
	video := writeArtifact(t, dir, "b_clip.mp4")

	rec, err := library.NewVideo("a", "song", "https://x", "mp3", audio, time.Now())
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	if rec.Kind != library.KindAudio || rec.Container != "mp3" || rec.SizeBytes != 2048 {
		t.Fatalf("unexpected audio record %+v", rec)
	}
	rec, err = library.NewVideo("b", "clip", "https://x", "mp4", video, time.Now())
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}
	if rec.Kind != library.KindVideo || rec.FileName != "b_clip.mp4" {
		t.Fatalf("unexpected video record %+v", rec)
	}
	if _, err := library.NewVideo("c", "", "", "mp4", filepath.Join(dir, "missing.mp4"), time.Now()); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	lib, dir := openLibrary(t)
	path := writeArtifact(t, dir, "job1_title.mp4")
	video, err := library.NewVideo("job1", "title", "https://x", "mp4", path, time.Now())
	if err != nil {
		t.Fatalf("NewVideo: %v", err)
	}

	created, err := lib.Record(video)
	if err != nil || !created {
		t.Fatalf("first Record: created=%v err=%v", created, err)
	}
	video.Title = "changed"
	created, err = lib.Record(video)
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if created {
		t.Fatal("expected second record to be skipped")
	}
	videos, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "title" {
		t.Fatalf("expected exactly one original record, got %+v", videos)
	}
}

func TestListNewestFirst(t *testing.T) {
	lib, dir := openLibrary(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		path := writeArtifact(t, dir, id+"_x.mp4")
		video, err := library.NewVideo(id, id, "", "mp4", path, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("NewVideo: %v", err)
		}
		if _, err := lib.Record(video); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	videos, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(videos) != 3 || videos[0].ID != "new" || videos[2].ID != "old" {
		t.Fatalf("unexpected order %+v", videos)
	}
}

func TestDeleteRemovesRecordAndFile(t *testing.T) {
	lib, dir := openLibrary(t)
	path := writeArtifact(t, dir, "job1_title.mp4")
	video, _ := library.NewVideo("job1", "title", "", "mp4", path, time.Now())
	if _, err := lib.Record(video); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if _, err := lib.Delete("job1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
	got, err := lib.Get("job1")
	if err != nil || got != nil {
		t.Fatalf("expected record gone, got %+v err=%v", got, err)
	}

	_, err = lib.Delete("job1")
	if !errors.Is(err, services.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	lib, dir := openLibrary(t)
	path := writeArtifact(t, dir, "job2_title.mp3")
	video, _ := library.NewVideo("job2", "title", "", "mp3", path, time.Now())
	_, _ = lib.Record(video)
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := lib.Delete("job2"); err != nil {
		t.Fatalf("Delete with missing file: %v", err)
	}
}

func TestResolveFileRejectsTraversal(t *testing.T) {
	lib, dir := openLibrary(t)
	writeArtifact(t, dir, "ok.mp4")

	if _, err := lib.ResolveFile("ok.mp4"); err != nil {
		t.Fatalf("ResolveFile: %v", err)
	}
	for _, name := range []string{"../secret", "sub/ok.mp4", "..", ""} {
		_, err := lib.ResolveFile(name)
		if !errors.Is(err, services.ErrInvalidInput) {
			t.Fatalf("ResolveFile(%q): expected invalid input, got %v", name, err)
		}
	}
	if _, err := lib.ResolveFile("absent.mp4"); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
