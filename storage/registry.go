// Package storage defines the key-value collaborator beneath the state
// layer and a registry of backend implementations. Backends register
// themselves from their init function.
package storage

import (
	"sort"
	"sync"

	"github.com/govm-net/sandbox/api"
	"github.com/pkg/errors"
)

// BackendType names a registered backend implementation.
type BackendType string

const (
	// MemoryBackendType keeps state in process memory
	MemoryBackendType BackendType = "memory"
	// SQLiteBackendType persists state in a SQLite database through GORM
	SQLiteBackendType BackendType = "sqlite"
	// TMDBBackendType stores state in a tm-db database
	TMDBBackendType BackendType = "tmdb"
)

// Write is one buffered mutation handed to Commit.
type Write struct {
	Key    string
	Value  []byte
	Delete bool
}

// Backend is the external key-value store. Only the state driver talks to
// it.
type Backend interface {
	// Get returns the stored value and whether the key exists
	Get(key string) ([]byte, bool, error)
	// Commit applies all writes atomically, in order
	Commit(writes []Write) error
	// Close releases the underlying resources
	Close() error
}

// Constructor creates a backend from the storage configuration.
type Constructor func(conf api.Storage) (Backend, error)

// Registry defines the interface for managing Backend implementations
type Registry interface {
	// Register adds a new Backend implementation to the registry
	Register(bt BackendType, constructor Constructor) error
	// Open returns a new instance of the configured backend type
	Open(conf api.Storage) (Backend, error)
	// ListRegistered returns the registered backend types, sorted
	ListRegistered() []BackendType
}

type registry struct {
	mu       sync.RWMutex
	backends map[BackendType]Constructor
}

var defaultRegistry Registry = &registry{
	backends: make(map[BackendType]Constructor),
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

// Register adds a new Backend implementation to the registry
func (r *registry) Register(bt BackendType, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; exists {
		return errors.Errorf("backend type %s already registered", bt)
	}
	r.backends[bt] = constructor
	return nil
}

// Open returns a new instance of the configured backend type
func (r *registry) Open(conf api.Storage) (Backend, error) {
	bt := BackendType(conf.Backend)
	if bt == "" {
		bt = MemoryBackendType
	}
	r.mu.RLock()
	constructor, exists := r.backends[bt]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Errorf("backend type %s not registered", bt)
	}
	backend, err := constructor(conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s backend", bt)
	}
	return backend, nil
}

// ListRegistered returns the registered backend types, sorted
func (r *registry) ListRegistered() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BackendType, 0, len(r.backends))
	for bt := range r.backends {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register adds a new Backend implementation to the global registry
func Register(bt BackendType, constructor Constructor) error {
	return GetRegistry().Register(bt, constructor)
}

// Open returns a backend from the global registry
func Open(conf api.Storage) (Backend, error) {
	return GetRegistry().Open(conf)
}

// ListRegistered returns the backend types of the global registry
func ListRegistered() []BackendType {
	return GetRegistry().ListRegistered()
}
