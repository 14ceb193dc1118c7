package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps issued nonces in a process-local map. Single-use is
// guaranteed only within one process: in a multi-instance deployment
// use the Redis or database store instead.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	issuedAt time.Time
	consumed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Save(_ context.Context, value string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[value] = memoryEntry{issuedAt: issuedAt}
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, value string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[value]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	if e.consumed {
		return time.Time{}, ErrReplayed
	}
	e.consumed = true
	s.entries[value] = e
	return e.issuedAt, nil
}

func (s *MemoryStore) Sweep(_ context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v, e := range s.entries {
		if e.issuedAt.Before(before) {
			delete(s.entries, v)
		}
	}
	return nil
}
