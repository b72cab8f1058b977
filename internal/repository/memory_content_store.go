package repository

import (
	"context"
	"sync"
)

type MemoryContentStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{objects: make(map[string][]byte)}
}

func (s *MemoryContentStore) Put(_ context.Context, data []byte) (string, error) {
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := newContentID()
	for _, exists := s.objects[id]; exists; _, exists = s.objects[id] {
		id = newContentID()
	}
	s.objects[id] = stored

	return id, nil
}

func (s *MemoryContentStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	stored, ok := s.objects[id]
	s.mu.RUnlock()

	if !ok {
		return nil, contentNotFound(id)
	}

	data := make([]byte, len(stored))
	copy(data, stored)
	return data, nil
}

func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
