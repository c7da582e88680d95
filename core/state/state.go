// Package state persists the controller state between ticks and restarts.
package state

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("state key not found")

// Keys written by the controller.
const (
	KeySocAtStartOfHour = "soc_at_start_of_hour_wh"
	KeyHourCapturedAt   = "soc_at_start_of_hour_captured_at"
	KeyMaintenanceMode  = "maintenance_mode"
	KeyChargeMode       = "current_charge_mode"
)

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
