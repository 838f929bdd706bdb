package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps signals in process memory. Used for standalone runs and
// in tests.
type MemoryStore struct {
	mu        sync.Mutex
	signals   map[string]SignalRecord
	processed map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals:   make(map[string]SignalRecord),
		processed: make(map[string]time.Time),
	}
}

func (s *MemoryStore) SaveSignal(ctx context.Context, rec SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetSignal(ctx context.Context, id string) (SignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.signals[id]
	if !ok {
		return SignalRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) RecentSignals(ctx context.Context, asset string, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SignalRecord
	for _, rec := range s.signals {
		if asset == "" || rec.Asset == asset {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.processed[eventID]; ok {
		if ttl <= 0 || time.Since(at) < ttl {
			return false, nil
		}
	}
	s.processed[eventID] = time.Now()
	return true, nil
}

func (s *MemoryStore) ClearProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, eventID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
