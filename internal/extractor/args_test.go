package extractor

import (
	"errors"
	"strings"
	"testing"

	"ytarchiver/internal/services"
)

func TestDownloadArgsPerFormat(t *testing.T) {
	tmpl := OutputTemplate("/videos", "job1")
	if tmpl != "/videos/job1_%(title).50s.%(ext)s" {
		t.Fatalf("unexpected template %q", tmpl)
	}

	mp3, err := DownloadArgs("mp3", tmpl, "https://example.com/v")
	if err != nil {
		t.Fatalf("DownloadArgs mp3: %v", err)
	}
	joined := strings.Join(mp3, " ")
	for _, want := range []string{"--extract-audio", "--audio-format mp3", "--newline", "-o " + tmpl} {
		if !strings.Contains(joined, want) {
			t.Fatalf("mp3 args %q missing %q", joined, want)
		}
	}
	if mp3[len(mp3)-1] != "https://example.com/v" {
		t.Fatalf("expected url last, got %v", mp3)
	}

	mp4, err := DownloadArgs("MP4", tmpl, "https://example.com/v")
	if err != nil {
		t.Fatalf("DownloadArgs mp4: %v", err)
	}
	if !strings.Contains(strings.Join(mp4, " "), "--merge-output-format mp4") {
		t.Fatalf("mp4 args missing merge format: %v", mp4)
	}

	if _, err := DownloadArgs("avi", tmpl, "u"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for avi, got %v", err)
	}
}

func TestProbeArgs(t *testing.T) {
	args := ProbeArgs("https://example.com/v")
	if args[0] != "--dump-json" || args[len(args)-1] != "https://example.com/v" {
		t.Fatalf("unexpected probe args %v", args)
	}
}
