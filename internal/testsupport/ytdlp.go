package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fake yt-dlp modes.
const (
	// YTDLPOK probes, reports progress, and writes the final file.
	YTDLPOK = "ok"
	// YTDLPFail leaves a .part file behind and exits 1.
	YTDLPFail = "fail"
	// YTDLPHang leaves partial files behind and sleeps until killed.
	YTDLPHang = "hang"
	// YTDLPSlowProbe blocks in the metadata probe until killed.
	YTDLPSlowProbe = "slowprobe"
	// YTDLPNoArtifact exits 0 without producing a file.
	YTDLPNoArtifact = "noartifact"
)

// FakeTitle is the title the fake probe reports.
const FakeTitle = "Test Video: Part 1!"

const fakeYTDLPScript = `#!/bin/sh
mode="__MODE__"
out=""
prev=""
dump=0
audio=0
for arg in "$@"; do
  case "$arg" in
    --version) echo "2024.08.06"; exit 0 ;;
    --dump-json) dump=1 ;;
    --extract-audio) audio=1 ;;
  esac
  if [ "$prev" = "-o" ]; then out="$arg"; fi
  prev="$arg"
done
if [ "$dump" = "1" ]; then
  if [ "$mode" = "slowprobe" ]; then sleep 30; fi
  echo '{"id":"abc123","title":"Test Video: Part 1!","ext":"mp4"}'
  exit 0
fi
ext=mp4
if [ "$audio" = "1" ]; then ext=mp3; fi
final=$(printf '%s' "$out" | sed -e 's/%(title)\.50s/Test Video Part 1/' -e "s/%(ext)s/$ext/")
part="$final.part"
echo "[youtube] abc123: Downloading webpage"
printf 'partial' > "$part"
echo "[download]   0.0% of 10.00MiB at 1.00MiB/s ETA 00:10"
echo "[download]  25.0% of 10.00MiB at 1.00MiB/s ETA 00:07"
case "$mode" in
  fail)
    echo "ERROR: unable to download video data: HTTP Error 403: Forbidden" >&2
    exit 1 ;;
  hang)
    printf '' > "$final.ytdl"
    sleep 30
    exit 0 ;;
  noartifact)
    rm -f "$part"
    exit 0 ;;
esac
echo "[download]  50.0% of 10.00MiB at 1.00MiB/s ETA 00:05"
echo "[download]  40.0% of 10.00MiB at 1.00MiB/s ETA 00:05"
echo "[download] 100.0% of 10.00MiB at 1.00MiB/s ETA 00:00"
mv "$part" "$final"
printf 'media-bytes' > "$final"
exit 0
`

// WriteFakeYTDLP writes an executable shell script emulating yt-dlp into dir
// and returns its path. The script honours --version, --dump-json, -o and
// --extract-audio.
func WriteFakeYTDLP(t testing.TB, dir, mode string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "yt-dlp-"+mode)
	script := strings.ReplaceAll(fakeYTDLPScript, "__MODE__", mode)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	return path
}
