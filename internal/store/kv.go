package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"

	"github.com/jwplayer/ott-web-app-sub004/internal/metrics"
)

// Store is a namespaced JSON key-value store over a Backend.
// Every operation is fail-soft: write failures are logged and swallowed,
// read failures look like a missing key.
type Store struct {
	backend Backend
	prefix  string
	logger  *slog.Logger
}

// New creates a Store. Keys are namespaced as "<prefix>.<key>".
// A nil backend yields a store where every read misses and every write is dropped.
func New(backend Backend, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if backend == nil {
		backend = unavailableBackend{}
	}
	return &Store{backend: backend, prefix: prefix, logger: logger}
}

// Prefix returns the namespace applied to keys
func (s *Store) Prefix() string { return s.prefix }

// Close closes the underlying backend
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) key(key string, usePrefix bool) string {
	if !usePrefix || s.prefix == "" {
		return key
	}
	return s.prefix + "." + key
}

// SetItem writes value under the namespaced key
func (s *Store) SetItem(key string, value any) {
	s.SetItemStorage(key, value, true)
}

// GetItem decodes the value under the namespaced key into dest, which must be
// a non-nil pointer. It reports false when the key is absent, the stored JSON
// does not decode, or storage is unavailable. dest is only modified on success.
func (s *Store) GetItem(key string, dest any) bool {
	return s.GetItemStorage(key, dest, true)
}

// RemoveItem deletes the namespaced key
func (s *Store) RemoveItem(key string) {
	s.RemoveItemStorage(key, true)
}

// SetItemStorage is SetItem with namespacing optional
func (s *Store) SetItemStorage(key string, value any, usePrefix bool) {
	k := s.key(key, usePrefix)

	data, err := json.Marshal(value)
	if err != nil {
		metrics.IncStorageError("encode")
		s.logger.Warn("failed to encode storage value", "key", k, "error", err)
		return
	}

	if err := s.backend.Set(k, data); err != nil {
		metrics.IncStorageError("set")
		s.logger.Warn("failed to write storage value", "key", k, "error", err)
	}
}

// GetItemStorage is GetItem with namespacing optional
func (s *Store) GetItemStorage(key string, dest any, usePrefix bool) bool {
	k := s.key(key, usePrefix)

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		s.logger.Error("storage destination must be a non-nil pointer", "key", k)
		return false
	}

	data, err := s.backend.Get(k)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.IncStorageError("get")
			s.logger.Warn("failed to read storage value", "key", k, "error", err)
		}
		return false
	}

	// Decode into a scratch value so a corrupt entry never leaves dest half-filled
	tmp := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, tmp.Interface()); err != nil {
		metrics.IncStorageError("decode")
		s.logger.Warn("failed to decode storage value", "key", k, "error", err)
		return false
	}
	rv.Elem().Set(tmp.Elem())
	return true
}

// RemoveItemStorage is RemoveItem with namespacing optional
func (s *Store) RemoveItemStorage(key string, usePrefix bool) {
	k := s.key(key, usePrefix)
	if err := s.backend.Delete(k); err != nil && !errors.Is(err, ErrNotFound) {
		metrics.IncStorageError("delete")
		s.logger.Warn("failed to remove storage value", "key", k, "error", err)
	}
}

// Get is the typed form of GetItem
func Get[T any](s *Store, key string) (T, bool) {
	var v T
	ok := s.GetItem(key, &v)
	return v, ok
}
