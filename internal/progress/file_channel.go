package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ytarchiver/internal/fileutil"
)

const lockRetryDelay = 5 * time.Millisecond

// FileChannel stores the record as one JSON document, rewritten atomically on
// every mutation. An advisory file lock serializes read-modify-write cycles
// across processes; the mutex does the same inside this one.
type FileChannel struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	now  func() time.Time
}

// NewFileChannel opens the progress document at path, creating its directory.
func NewFileChannel(path string) (*FileChannel, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create progress directory: %w", err)
	}
	return &FileChannel{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the document location.
func (c *FileChannel) Path() string {
	return c.path
}

func (c *FileChannel) Reset(ctx context.Context, record Record) error {
	if err := record.validate(); err != nil {
		return fmt.Errorf("progress reset: %w", err)
	}
	return c.withLock(ctx, true, func() error {
		return c.write(record)
	})
}

func (c *FileChannel) Update(ctx context.Context, record Record) (bool, error) {
	if err := record.validate(); err != nil {
		return false, fmt.Errorf("progress update: %w", err)
	}
	var written bool
	err := c.withLock(ctx, true, func() error {
		stored, err := c.read()
		if err != nil {
			return err
		}
		if stored.JobID == "" || stored.JobID != record.JobID {
			return nil
		}
		if record.Percent < stored.Percent {
			record.Percent = stored.Percent
		}
		written = true
		return c.write(record)
	})
	return written, err
}

func (c *FileChannel) Clear(ctx context.Context, jobID string) (bool, error) {
	var cleared bool
	err := c.withLock(ctx, true, func() error {
		stored, err := c.read()
		if err != nil {
			return err
		}
		if stored.JobID != jobID {
			return nil
		}
		cleared = true
		return c.write(Idle())
	})
	return cleared, err
}

func (c *FileChannel) Read(ctx context.Context) (Record, error) {
	var record Record
	err := c.withLock(ctx, false, func() error {
		var err error
		record, err = c.read()
		return err
	})
	return record, err
}

func (c *FileChannel) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = c.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = c.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock progress: %w", err)
	}
	if !locked {
		return errors.New("lock progress: not acquired")
	}
	defer func() { _ = c.lock.Unlock() }()
	return fn()
}

func (c *FileChannel) read() (Record, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Idle(), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read progress: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode progress: %w", err)
	}
	if record.Phase == "" {
		record.Phase = PhaseIdle
	}
	return record, nil
}

func (c *FileChannel) write(record Record) error {
	record.UpdatedAt = c.now().UTC()
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}
