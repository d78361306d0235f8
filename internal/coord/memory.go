package coord

import (
	"context"
	"sync"

	"liquiditySniper/internal/model"
)

// MemoryStore keeps the record in process. Instances sharing one MemoryStore
// coordinate exactly like separate processes sharing a file.
type MemoryStore struct {
	mu     sync.Mutex
	record model.CoordinationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) Load(context.Context) (model.CoordinationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecord(s.record), nil
}

func (s *MemoryStore) ClaimWinner(_ context.Context, node string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.WinnerNode == nil {
		winner := node
		s.record.WinnerNode = &winner
	}
	return *s.record.WinnerNode == node, nil
}

func (s *MemoryStore) RequestExit(context.Context) error {
	s.mu.Lock()
	s.record.Exit = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyRecord(record model.CoordinationRecord) model.CoordinationRecord {
	if record.WinnerNode != nil {
		winner := *record.WinnerNode
		record.WinnerNode = &winner
	}
	return record
}
