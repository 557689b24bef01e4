package httputil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/nary/pkg/observability"
)

// ErrExpired is returned by [Cache.Get] when an entry exists but is older
// than the cache TTL. Callers refetch and [Cache.Set] the fresh value.
var ErrExpired = errors.New("cache entry expired")

// Cache stores JSON documents (registry metadata) on disk with a TTL.
//
// Each entry is a file named by the SHA-256 of its key. Writes go to a
// uniquely named temp file and are renamed into place, so concurrent
// goroutines and processes sharing a directory never read a torn entry.
// A TTL of 0 means entries never expire.
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// DefaultDir returns the metadata cache directory under the user cache dir.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "nary", "metadata"), nil
}

// NewCache creates a Cache in dir, or in [DefaultDir] when dir is empty.
// The directory is created if needed.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the time-to-live for entries.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get unmarshals the entry for key into v.
//
//   - (true, nil): fresh hit, v is populated.
//   - (false, nil): miss, v is unchanged.
//   - (false, ErrExpired): stale entry, v is unchanged.
//   - (false, err): I/O or decode failure.
func (c *Cache) Get(key string, v any) (bool, error) {
	ctx := context.Background()
	path := c.keyPath(c.prefix + key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		observability.Cache().OnCacheMiss(ctx, "metadata", c.prefix+key)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		observability.Cache().OnCacheMiss(ctx, "metadata", c.prefix+key)
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	observability.Cache().OnCacheHit(ctx, "metadata", c.prefix+key)
	return true, nil
}

// Set stores v under key, replacing any previous entry and resetting its age.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	path := c.keyPath(c.prefix + key)
	tmp := path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	observability.Cache().OnCacheSet(context.Background(), "metadata", c.prefix+key, len(data))
	return nil
}

// Namespace returns a view of the cache that prefixes every key, so one
// directory can hold metadata from several registries:
//
//	public := cache.Namespace("https://registry.npmjs.org/")
//	mirror := cache.Namespace("http://localhost:4873/")
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		dir:    c.dir,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
	}
}

func (c *Cache) keyPath(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
