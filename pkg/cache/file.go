package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileCache keeps cached values on disk, so inspecting the same unchanged
// template twice never parses it twice. Keys are hashed into a two-level
// directory tree; each entry is a small JSON file carrying the value and
// its expiry deadline.
type FileCache struct {
	dir string
}

// NewFileCache creates a cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// entry is the on-disk shape of one cached value. A zero deadline means
// the entry never expires.
type entry struct {
	Value    []byte    `json:"value"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Get returns the cached value for key. Entries past their deadline, and
// entries that no longer decode, are removed and reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.entryPath(key)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.Deadline.IsZero() && time.Now().After(e.Deadline) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Value, true, nil
}

// Set stores value under key. A ttl of zero keeps the entry until the key
// is overwritten or deleted.
func (c *FileCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{Value: value}
	if ttl > 0 {
		e.Deadline = time.Now().Add(ttl)
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.entryPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Close is a no-op; every operation opens and closes its own file.
func (c *FileCache) Close() error {
	return nil
}

// entryPath shards entries by the leading hash byte so a large template
// library does not pile every entry into a single directory.
func (c *FileCache) entryPath(key string) string {
	sum := Hash([]byte(key))
	return filepath.Join(c.dir, sum[:2], sum[2:]+".json")
}
