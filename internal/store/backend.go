package store

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by a Backend when the key has never been written.
var ErrNotFound = errors.New("key not found")

// ErrUnavailable is returned by every operation of a store that has no backend.
var ErrUnavailable = errors.New("storage unavailable")

// Backend is the raw byte-oriented persistence layer behind a Store.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
	Delete(key string) error
	Close() error
}

// MemoryBackend keeps values in a map. Nothing survives the process.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryBackend) Set(key string, data []byte) error {
	v := make([]byte, len(data))
	copy(v, data)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// unavailableBackend stands in when no durable storage could be opened
type unavailableBackend struct{}

func (unavailableBackend) Get(string) ([]byte, error) { return nil, ErrUnavailable }
func (unavailableBackend) Set(string, []byte) error   { return ErrUnavailable }
func (unavailableBackend) Delete(string) error        { return ErrUnavailable }
func (unavailableBackend) Close() error               { return nil }
