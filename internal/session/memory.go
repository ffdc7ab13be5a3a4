package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	state     *State
	expiresAt time.Time
}

// MemoryStore is the in-process driver: a mutex-guarded map with lazy TTL
// expiry plus a background sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates the in-memory driver. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get implements Store. Expired sessions behave as absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	return e.state, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, st *State) error {
	now := time.Now()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now

	s.mu.Lock()
	s.entries[st.ID] = memoryEntry{state: st, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
