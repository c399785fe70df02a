// Package memory provides an in-memory implementation of the key-value
// persistence contract used for tests and ephemeral environments.
package memory

import (
	"context"
	"duesdesk/pkg/domain"
	"errors"
	"sort"
	"sync"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.KVStore = (*Store)(nil)

// ErrQuotaExceeded is returned when a write would push the store past its quota.
var ErrQuotaExceeded = errors.New("memory store quota exceeded")

// Option configures a Store.
type Option func(*Store)

// WithQuota caps the total number of payload bytes held by the store. A
// non-positive quota means unlimited.
func WithQuota(bytes int) Option {
	return func(s *Store) { s.quota = bytes }
}

// Store keeps one byte payload per key. Values are copied on the way in and
// out so callers never share backing arrays with the store.
type Store struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{data: make(map[string][]byte)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns a copy of the payload stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// Set replaces the payload stored under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quota > 0 {
		used := len(value)
		for k, v := range s.data {
			if k != key {
				used += len(v)
			}
		}
		if used > s.quota {
			return ErrQuotaExceeded
		}
	}
	s.data[key] = cloneBytes(value)
	return nil
}

// Keys lists stored keys in ascending order.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
