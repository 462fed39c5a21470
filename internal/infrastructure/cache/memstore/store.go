// Package memstore is the in-process cache backend, suitable for a single
// instance or as the default when no Postgres is configured.
package memstore

import (
	"context"
	"sync"

	"github.com/caiomeira/extractd/internal/core/domain"
)

type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

func New() *Store {
	return &Store{entries: make(map[string]domain.CacheEntry)}
}

func (s *Store) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored entry.
	out := entry
	return &out, nil
}

func (s *Store) Put(_ context.Context, entry domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key] = entry
	return nil
}

// Delete removes a single entry. Used by maintenance paths; the read path
// treats expired entries as absent without deleting them.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
