package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"liquiditySniper/internal/model"
)

const lockRetryInterval = 5 * time.Millisecond

// FileStore keeps the record as JSON on a filesystem shared by all
// instances. Every read-modify-write holds an advisory lock on a sibling
// lock file, and writes go through a temporary file and rename. The lock
// dies with its holder, so a crashed instance never wedges the others.
type FileStore struct {
	path string
}

// FilePath returns the record path for a run inside dir.
func FilePath(dir, runID string) string {
	if dir == "" {
		dir = "./cache"
	}
	if runID == "" {
		runID = "default"
	}
	return filepath.Join(dir, runID+".json")
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the record file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create coordination dir: %w", err)
		}
	}
	return s.update(ctx, func(record *model.CoordinationRecord, exists bool) bool {
		return !exists
	})
}

func (s *FileStore) Load(ctx context.Context) (model.CoordinationRecord, error) {
	record, _, err := s.read()
	return record, err
}

func (s *FileStore) ClaimWinner(ctx context.Context, node string) (bool, error) {
	won := false
	err := s.update(ctx, func(record *model.CoordinationRecord, _ bool) bool {
		if record.WinnerNode == nil {
			winner := node
			record.WinnerNode = &winner
			won = true
			return true
		}
		won = *record.WinnerNode == node
		return false
	})
	return won, err
}

func (s *FileStore) RequestExit(ctx context.Context) error {
	return s.update(ctx, func(record *model.CoordinationRecord, _ bool) bool {
		if record.Exit {
			return false
		}
		record.Exit = true
		return true
	})
}

func (s *FileStore) Close() error { return nil }

// update runs fn on the current record under the lock and writes the record
// back when fn reports a change.
func (s *FileStore) update(ctx context.Context, fn func(record *model.CoordinationRecord, exists bool) bool) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	record, exists, err := s.read()
	if err != nil {
		return err
	}
	if !fn(&record, exists) {
		return nil
	}
	return s.write(record)
}

func (s *FileStore) read() (model.CoordinationRecord, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.CoordinationRecord{}, false, nil
		}
		return model.CoordinationRecord{}, false, fmt.Errorf("read coordination record: %w", err)
	}
	var record model.CoordinationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.CoordinationRecord{}, true, fmt.Errorf("parse coordination record: %w", err)
	}
	return record, true, nil
}

func (s *FileStore) write(record model.CoordinationRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal coordination record: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write coordination tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename coordination record: %w", err)
	}
	return nil
}

// LockPath returns the path of the lock file guarding the record.
func (s *FileStore) LockPath() string {
	return s.path + ".lock"
}

func (s *FileStore) lock(ctx context.Context) (func(), error) {
	fileLock := flock.New(s.LockPath())
	locked, err := fileLock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("lock coordination record: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock coordination record: %w", ctx.Err())
	}
	return func() { _ = fileLock.Unlock() }, nil
}
