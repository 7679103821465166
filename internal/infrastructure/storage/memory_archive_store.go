package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/eo-nwanze/lavish-sub000/internal/application/audit"
)

var _ audit.ArchiveStore = (*MemoryArchiveStore)(nil)

// MemoryArchiveStore keeps archive objects in memory. Used for local runs with archive.endpoint
// unset and in tests.
type MemoryArchiveStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryArchiveStore creates an empty store
func NewMemoryArchiveStore() *MemoryArchiveStore {
	return &MemoryArchiveStore{objects: make(map[string][]byte)}
}

// Upload stores a copy of data under key
func (s *MemoryArchiveStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	if key == "" {
		return errors.New("object key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

// ObjectExists reports whether key was uploaded
func (s *MemoryArchiveStore) ObjectExists(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("object key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Object returns the stored bytes for key
func (s *MemoryArchiveStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns how many objects are stored
func (s *MemoryArchiveStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
