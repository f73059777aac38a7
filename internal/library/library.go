package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"ytarchiver/internal/config"
	"ytarchiver/internal/fileutil"
	"ytarchiver/internal/services"
)

var videosBucket = []byte("videos")

// Library stores VideoRecords in a bbolt database keyed by job id.
type Library struct {
	db        *bolt.DB
	videosDir string
}

// Open opens the library database configured in cfg.
func Open(cfg *config.Config) (*Library, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return OpenPath(cfg.LibraryDBPath(), cfg.Paths.VideosDir)
}

// OpenPath opens (creating if needed) the database at path. videosDir bounds
// which files ResolveFile and Delete will touch.
func OpenPath(path, videosDir string) (*Library, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure library directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(videosBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create videos bucket: %w", err)
	}
	return &Library{db: db, videosDir: videosDir}, nil
}

// Close releases the database.
func (l *Library) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record stores video unless a record for the same id already exists. It
// reports whether a new record was written.
func (l *Library) Record(video Video) (bool, error) {
	if strings.TrimSpace(video.ID) == "" {
		return false, services.Wrap(services.ErrInvalidInput, "library", "record", "video id is required", nil)
	}
	payload, err := json.Marshal(video)
	if err != nil {
		return false, fmt.Errorf("encode video: %w", err)
	}
	var created bool
	err = l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(videosBucket)
		key := []byte(video.ID)
		if bucket.Get(key) != nil {
			return nil
		}
		created = true
		return bucket.Put(key, payload)
	})
	if err != nil {
		return false, fmt.Errorf("record video: %w", err)
	}
	return created, nil
}

// Get returns the record for id, or nil when none exists.
func (l *Library) Get(id string) (*Video, error) {
	var video *Video
	err := l.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(videosBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		var v Video
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode video %s: %w", id, err)
		}
		video = &v
		return nil
	})
	return video, err
}

// Exists reports whether id has a record.
func (l *Library) Exists(id string) (bool, error) {
	video, err := l.Get(id)
	return video != nil, err
}

// List returns every record, newest first.
func (l *Library) List() ([]Video, error) {
	var videos []Video
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(videosBucket).ForEach(func(k, v []byte) error {
			var video Video
			if err := json.Unmarshal(v, &video); err != nil {
				return fmt.Errorf("decode video %s: %w", k, err)
			}
			videos = append(videos, video)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID > videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	return videos, nil
}

// Delete removes the record and its file. A file that is already gone is not
// an error.
func (l *Library) Delete(id string) (*Video, error) {
	video, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, services.Wrap(services.ErrJobNotFound, "library", "delete", "no video for id "+id, nil)
	}
	if path, err := l.ResolveFile(video.FileName); err == nil {
		if err := fileutil.RemoveIfExists(path); err != nil {
			return nil, fmt.Errorf("remove video file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	err = l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(videosBucket).Delete([]byte(id))
	})
	if err != nil {
		return nil, fmt.Errorf("delete video record: %w", err)
	}
	return video, nil
}

// ResolveFile maps a bare file name to a path inside the videos directory.
// Names carrying directory components are rejected.
func (l *Library) ResolveFile(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsRune(name, '\\') {
		return "", services.Wrap(services.ErrInvalidInput, "library", "resolve file", "invalid file name", nil)
	}
	path := filepath.Join(l.videosDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInvalidInput, "library", "resolve file", "not a file", nil)
	}
	return path, nil
}
