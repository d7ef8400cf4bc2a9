// Package memory is the in-process storage backend.
package memory

import (
	"sync"

	"github.com/govm-net/sandbox/api"
	"github.com/govm-net/sandbox/storage"
)

// Store keeps committed state in a map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func init() {
	if err := storage.Register(storage.MemoryBackendType, func(api.Storage) (storage.Backend, error) {
		return New(), nil
	}); err != nil {
		panic(err)
	}
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get implements storage.Backend
func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Commit implements storage.Backend
func (s *Store) Commit(writes []storage.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		if w.Delete {
			delete(s.data, w.Key)
			continue
		}
		value := make([]byte, len(w.Value))
		copy(value, w.Value)
		s.data[w.Key] = value
	}
	return nil
}

// Close implements storage.Backend
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
