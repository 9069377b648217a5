package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
//
// It never expires or evicts entries itself; staleness is decided by the
// Coordinator and a stale entry is simply overwritten by the next success.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Contains reports whether an entry exists for key.
func (s *MemoryStore) Contains(_ context.Context, key string) bool {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

// Read returns the entry stored under key, or ErrNotFound.
func (s *MemoryStore) Read(_ context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// Write replaces the entry stored under key.
func (s *MemoryStore) Write(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored entries, stale ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
