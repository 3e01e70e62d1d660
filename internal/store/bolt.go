package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketKV = []byte("kv")

// BoltBackend implements Backend using BoltDB.
type BoltBackend struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewBoltBackend opens (or creates) the database for appID under baseDir.
// An empty baseDir gives a memory-only backend.
func NewBoltBackend(baseDir, appID string) (*BoltBackend, error) {
	if baseDir == "" {
		// Memory-only mode (no persistence)
		return &BoltBackend{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if appID != "" {
		dir = filepath.Join(baseDir, hashAppID(appID))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "ottsync.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db, cache: make(map[string][]byte)}, nil
}

func hashAppID(appID string) string {
	normalized := strings.TrimSpace(strings.ToLower(appID))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (b *BoltBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *BoltBackend) Get(key string) ([]byte, error) {
	b.mu.RLock()
	if data, ok := b.cache[key]; ok {
		b.mu.RUnlock()
		return clone(data), nil
	}
	b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrNotFound
	}

	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketKV).Get([]byte(key)); v != nil {
			data = clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNotFound
	}

	// Promote to memory cache unless a concurrent Set got there first
	b.mu.Lock()
	if _, ok := b.cache[key]; !ok {
		b.cache[key] = data
	}
	b.mu.Unlock()

	return clone(data), nil
}

func (b *BoltBackend) Set(key string, data []byte) error {
	data = clone(data)

	if b.db != nil {
		err := b.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketKV).Put([]byte(key), data)
		})
		if err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.cache[key] = data
	b.mu.Unlock()
	return nil
}

func (b *BoltBackend) Delete(key string) error {
	b.mu.Lock()
	delete(b.cache, key)
	b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
}

func clone(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
