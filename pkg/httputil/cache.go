package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] when a cached entry exists but has
// exceeded its time-to-live. The stale data stays on disk; callers should
// fetch fresh data and update the cache with [Cache.Set].
var ErrExpired = errors.New("cache entry expired")

// Cache provides file-based caching of JSON-marshalable data with a TTL.
//
// Each entry is stored as one JSON file whose name is the SHA-256 hash of
// the cache key, so arbitrary keys (URLs, plugin names with spaces) are
// safe. Expiry is based on file modification time; a TTL of 0 means entries
// never expire.
//
// Cache methods do their own locking only at the filesystem level (writes
// are whole-file); callers that need read-modify-write atomicity must
// serialize themselves. Use [Cache.Namespace] to scope keys per source:
//
//	bukkit := cache.Namespace("bukkit:")
//	spiget := cache.Namespace("spiget:")
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache creates a Cache storing entries in dir with the given TTL.
// An empty dir defaults to ~/.cache/dropper/. The directory is created if
// missing.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "dropper")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory path.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the configured time-to-live. Zero means no expiry.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a cached value by key and unmarshals it into v.
// Outcomes:
//   - (true, nil): fresh hit, v populated
//   - (false, nil): miss, v unchanged
//   - (false, ErrExpired): entry exists but is stale, v unchanged
//   - (false, other): I/O or decode failure
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores v under key, resetting the entry's TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(c.prefix+key), data, 0o644)
}

// Invalidate removes the entry for key. Removing a missing entry is not an
// error; invalidation is used by the explicit refresh action and must be
// idempotent.
func (c *Cache) Invalidate(key string) error {
	err := os.Remove(c.keyPath(c.prefix + key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// InvalidateAll removes every entry in the cache directory, including
// entries from other namespaces sharing the directory.
func (c *Cache) InvalidateAll() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Namespace returns a view of the cache that prefixes all keys, keeping
// different sources from colliding in the shared directory.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{dir: c.dir, ttl: c.ttl, prefix: c.prefix + prefix}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
