package extractor

import (
	"path/filepath"
	"strings"

	"ytarchiver/internal/services"
)

const (
	FormatMP4 = "mp4"
	FormatMP3 = "mp3"
)

// OutputTemplate returns the yt-dlp -o template for a job. Every file the
// tool writes for the job starts with "<jobID>_".
func OutputTemplate(outputDir, jobID string) string {
	return filepath.Join(outputDir, jobID+"_%(title).50s.%(ext)s")
}

// ProbeArgs returns the metadata-only invocation for url.
func ProbeArgs(url string) []string {
	return []string{"--dump-json", "--no-warnings", "--no-playlist", url}
}

// DownloadArgs builds the download invocation for the requested format.
func DownloadArgs(format, template, url string) ([]string, error) {
	var args []string
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMP3:
		args = []string{"-f", "bestaudio", "--extract-audio", "--audio-format", "mp3", "--audio-quality", "0"}
	case FormatMP4, "":
		args = []string{"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best", "--merge-output-format", "mp4"}
	default:
		return nil, services.Wrap(services.ErrInvalidInput, "extractor", "download args", "unsupported format "+format, nil)
	}
	args = append(args, "--newline", "--progress", "--no-playlist", "-o", template, url)
	return args, nil
}
