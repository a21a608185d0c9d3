package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. Counters vanish on restart and
// are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Counter
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Counter), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.entries[key]
	if !ok || !s.now().Before(counter.ResetAt) {
		return Counter{}, nil
	}
	return counter, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	counter, ok := s.entries[key]
	if !ok || !now.Before(counter.ResetAt) {
		counter = Counter{ResetAt: now.Add(window)}
	}
	counter.Count++
	s.entries[key] = counter
	return counter, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep removes counters whose window is over and reports how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, counter := range s.entries {
		if !now.Before(counter.ResetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired counters every interval until ctx is done.
func (s *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
