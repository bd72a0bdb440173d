package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	records map[string]map[Key]Record
	now     Clock
	mu      sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory progress store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]map[Key]Record),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to stamp completed_at.
func (s *MemoryRepository) WithClock(now Clock) *MemoryRepository {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *MemoryRepository) FetchAll(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byKey := s.records[userID]
	out := make([]Record, 0, len(byKey))
	for _, rec := range byKey {
		out = append(out, copyRecord(rec))
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryRepository) Upsert(_ context.Context, rec Record) (Record, error) {
	if err := checkRecord(rec); err != nil {
		return Record{}, writeError(rec.UserID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec = stamp(rec, s.now)
	byKey, ok := s.records[rec.UserID]
	if !ok {
		byKey = make(map[Key]Record)
		s.records[rec.UserID] = byKey
	}
	byKey[rec.Key()] = rec
	return copyRecord(rec), nil
}

// Get returns the stored record for a lesson, if any.
func (s *MemoryRepository) Get(userID string, key Key) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID][key]
	return copyRecord(rec), ok
}

func copyRecord(rec Record) Record {
	if rec.CompletedAt != nil {
		t := *rec.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}
