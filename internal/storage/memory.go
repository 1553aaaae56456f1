package storage

import (
	"context"
	"sync"
)

// Memory provides in-memory storage of values by key. Nothing survives a restart.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory creates a new Memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (s *Memory) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set saves value under key.
func (s *Memory) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes the given keys.
func (s *Memory) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
