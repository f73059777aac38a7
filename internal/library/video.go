package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MediaKind distinguishes audio-only downloads from video files.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

var audioExtensions = map[string]struct{}{
	"mp3":  {},
	"m4a":  {},
	"opus": {},
	"ogg":  {},
	"wav":  {},
	"flac": {},
}

// Video is the persisted record of one completed download. ID is the job id.
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url"`
	Format    string    `json:"format"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"`
	Container string    `json:"container"`
	Kind      MediaKind `json:"kind"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// KindForExtension classifies a container extension (with or without dot).
func KindForExtension(ext string) MediaKind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := audioExtensions[ext]; ok {
		return KindAudio
	}
	return KindVideo
}

// NewVideo describes the artifact at path for job id.
func NewVideo(id, title, sourceURL, format, path string, createdAt time.Time) (Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Video{}, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return Video{}, fmt.Errorf("artifact %s is a directory", path)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return Video{
		ID:        id,
		Title:     title,
		SourceURL: sourceURL,
		Format:    format,
		FileName:  filepath.Base(path),
		FilePath:  path,
		Container: ext,
		Kind:      KindForExtension(ext),
		SizeBytes: info.Size(),
		CreatedAt: createdAt.UTC(),
	}, nil
}
