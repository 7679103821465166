package cache

import (
	"context"
	"sync"
	"time"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
)

// MemoryDeliveryStore remembers processed webhook deliveries in process memory.
// Suitable for a single instance and for tests; replicas do not share it.
type MemoryDeliveryStore struct {
	mu        sync.RWMutex
	expiry    map[string]time.Time
	clock     func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryDeliveryStore creates the store and starts its expiry sweeper
func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return newMemoryDeliveryStore(5 * time.Minute)
}

func newMemoryDeliveryStore(sweepEvery time.Duration) *MemoryDeliveryStore {
	s := &MemoryDeliveryStore{
		expiry:   make(map[string]time.Time),
		clock:    time.Now,
		stopChan: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(sweepEvery)
	return s
}

// MarkProcessed records key until ttl elapses. It returns false when key is already live.
func (s *MemoryDeliveryStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if exp, ok := s.expiry[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is recorded and not expired
func (s *MemoryDeliveryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.expiry[key]
	return ok && s.clock().Before(exp), nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryDeliveryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of recorded keys, expired ones included until the next sweep
func (s *MemoryDeliveryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expiry)
}

func (s *MemoryDeliveryStore) sweepLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryDeliveryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for key, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.expiry, key)
		}
	}
}

var _ shared.IdempotencyStore = (*MemoryDeliveryStore)(nil)
