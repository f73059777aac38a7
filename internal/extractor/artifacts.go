package extractor

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ytarchiver/internal/fileutil"
)

var (
	temporarySuffixes = []string{".part", ".ytdl", ".temp", ".tmp"}
	fragmentPattern   = regexp.MustCompile(`\.part-Frag\d+(\.part)?$`)
	formatPattern     = regexp.MustCompile(`\.f\d+\.[A-Za-z0-9]+$`)
	tempMergePattern  = regexp.MustCompile(`\.temp\.[A-Za-z0-9]+$`)
)

// IsTemporaryArtifact reports whether name is an in-progress or intermediate
// file rather than a finished download.
func IsTemporaryArtifact(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range temporarySuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return fragmentPattern.MatchString(name) || formatPattern.MatchString(name) || tempMergePattern.MatchString(name)
}

// JobArtifacts lists every regular file in dir named "<jobID>_*".
func JobArtifacts(dir, jobID string) ([]string, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("job id required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	prefix := jobID + "_"
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		matches = append(matches, filepath.Join(dir, entry.Name()))
	}
	return matches, nil
}

// FindArtifact returns the finished output for jobID, or "" when the tool
// left nothing but temporary files. When several finished files exist the
// largest wins.
func FindArtifact(dir, jobID string) (string, error) {
	matches, err := JobArtifacts(dir, jobID)
	if err != nil {
		return "", err
	}
	var (
		best     string
		bestSize int64 = -1
	)
	for _, path := range matches {
		if IsTemporaryArtifact(filepath.Base(path)) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = path
			bestSize = info.Size()
		}
	}
	return best, nil
}

// RemoveArtifacts deletes every file belonging to jobID, finished or not, and
// returns the paths removed.
func RemoveArtifacts(dir, jobID string) ([]string, error) {
	matches, err := JobArtifacts(dir, jobID)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(matches))
	var errs []error
	for _, path := range matches {
		if err := fileutil.RemoveIfExists(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}
