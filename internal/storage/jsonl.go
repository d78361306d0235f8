package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"liquiditySniper/internal/model"
)

const appendRetryInterval = 5 * time.Millisecond

// JsonlJournal appends submissions to a JSONL file that several instances
// of one run may share. Each batch is written with a single write while
// holding an advisory lock, so lines from different instances never
// interleave.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutSubmissions appends subs, one JSON object per line.
func (j *JsonlJournal) PutSubmissions(ctx context.Context, subs []model.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, sub := range subs {
		if err := enc.Encode(sub); err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
	}

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	fileLock := flock.New(j.path + ".lock")
	if _, err := fileLock.TryLockContext(ctx, appendRetryInterval); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer fileLock.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("append journal: %w", err)
	}
	return file.Close()
}

// CountExecuted returns how many executed submissions the run recorded on
// side. A line that does not parse, such as one cut short by a crash, is
// skipped.
func (j *JsonlJournal) CountExecuted(ctx context.Context, runID, side string) (int, error) {
	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var sub model.Submission
		if json.Unmarshal(scanner.Bytes(), &sub) != nil {
			continue
		}
		if sub.RunID == runID && sub.Side == side && sub.Status == model.RoundExecuted {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read journal: %w", err)
	}
	return count, nil
}
