package driver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xplshn/elz/pkg/config"
)

// cacheSchema is bumped whenever CacheEntry changes shape
const cacheSchema uint16 = 1

type CacheEntry struct {
	Schema uint16
	Name   string
	Output []byte
}

// Cache stores emitted output under <dir>/objs/<key>.mp
type Cache struct {
	dir string
}

func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objs"), 0o755); err != nil {
		return nil, fmt.Errorf("opening build cache: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// DefaultCacheDir is $XDG_CACHE_HOME/elz, falling back to the user cache directory
func DefaultCacheDir() (string, error) {
	if base := os.Getenv("XDG_CACHE_HOME"); base != "" {
		return filepath.Join(base, "elz"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "elz"), nil
}

// CacheKey hashes everything that determines the emitted output
func CacheKey(source string, cfg *config.Config) string {
	h := xxhash.New()
	for _, part := range []string{config.Version, cfg.Fingerprint(), source} {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (c *Cache) pathFor(key string) string { return filepath.Join(c.dir, "objs", key+".mp") }

// Get returns the entry for key. A missing entry or one written by another schema is a miss.
func (c *Cache) Get(key string) (*CacheEntry, bool, error) {
	data, err := os.ReadFile(c.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var entry CacheEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", c.pathFor(key), err)
	}
	if entry.Schema != cacheSchema {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put writes the entry to a temporary file and renames it into place
func (c *Cache) Put(key string, entry *CacheEntry) error {
	p := c.pathFor(key)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(entry); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}
