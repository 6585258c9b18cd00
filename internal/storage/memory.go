package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/minhtran2412/loadscope/internal/clock"
)

// MemoryStorage is a map-backed Storage for single-process deployments
// and tests. Expiry is checked against a Clock, so counter windows can be
// exercised under virtual time. Thread-safe for concurrent use.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]memItem
	clock clock.Clock
}

type memItem struct {
	value     []byte
	expiresAt time.Time // zero value means no expiration
}

// NewMemoryStorage creates an in-memory storage using the given clock.
func NewMemoryStorage(c clock.Clock) *MemoryStorage {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryStorage{
		items: make(map[string]memItem),
		clock: c,
	}
}

func (s *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok || s.expired(item) {
		return nil, nil
	}
	val := make([]byte, len(item.value))
	copy(val, item.value)
	return val, nil
}

func (s *MemoryStorage) Set(_ context.Context, key string, value []byte, exp time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := memItem{value: make([]byte, len(value))}
	copy(item.value, value)
	if exp > 0 {
		item.expiresAt = s.clock.Now().Add(exp)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStorage) Increment(_ context.Context, key string, delta int64, exp time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	item, ok := s.items[key]
	if ok && !s.expired(item) {
		n, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q holds a non-counter value: %w", key, err)
		}
		current = n
	} else {
		item = memItem{}
		if exp > 0 {
			item.expiresAt = s.clock.Now().Add(exp)
		}
	}

	current += delta
	item.value = []byte(strconv.FormatInt(current, 10))
	s.items[key] = item
	return current, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Close is a no-op; there is nothing to release.
func (s *MemoryStorage) Close() error {
	return nil
}

// Cleanup removes expired items. Call periodically for long-running
// sessions; Get and Increment already treat expired items as absent.
func (s *MemoryStorage) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items {
		if s.expired(item) {
			delete(s.items, key)
		}
	}
}

// Len returns the number of items, including expired ones not yet
// cleaned up.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStorage) expired(item memItem) bool {
	return !item.expiresAt.IsZero() && !s.clock.Now().Before(item.expiresAt)
}
