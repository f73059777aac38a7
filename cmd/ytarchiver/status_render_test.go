package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("yt-dlp", statusOK, "Ready", false)
	if !strings.Contains(line, "yt-dlp:") || !strings.HasSuffix(line, "[OK] Ready") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("yt-dlp", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected ANSI colouring, got %q", colored)
	}
}

func TestStatusKindFromSeverity(t *testing.T) {
	tests := map[string]statusKind{
		"ok":      statusOK,
		"WARN":    statusWarn,
		"warning": statusWarn,
		"error":   statusError,
		"":        statusInfo,
	}
	for input, want := range tests {
		if got := statusKindFromSeverity(input); got != want {
			t.Fatalf("statusKindFromSeverity(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBuildQueueStatusRowsOrder(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"complete": 3, "queued": 2, "error": 0, "active": 1})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %v", rows)
	}
	if rows[0][0] != "active" || rows[1][0] != "queued" || rows[2][0] != "complete" {
		t.Fatalf("unexpected order %v", rows)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Fatalf("formatBytes(512) = %q", got)
	}
	if got := formatBytes(5 * 1024 * 1024); got != "5.0 MiB" {
		t.Fatalf("formatBytes(5MiB) = %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
}
