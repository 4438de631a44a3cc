package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DiskCache implements Service with one file per key, surviving process
// restarts. Filenames are the SHA-256 of the key so arbitrary key characters
// stay filesystem-safe; the original key travels inside the entry for
// pattern deletes.
type DiskCache struct {
	dir   string
	mutex sync.Mutex
}

type diskEntry struct {
	Key      string
	ExpireAt time.Time // zero means no expiry
	Payload  []byte
}

// NewDiskCache creates a disk-backed cache rooted at the configured dir.
func NewDiskCache(opts ...DiskOption) (*DiskCache, error) {
	cfg := &DiskConfig{
		Dir: filepath.Join(os.TempDir(), "panelpull-cache"),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}

	return &DiskCache{dir: cfg.Dir}, nil
}

// Dir returns the cache root directory.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) entryPath(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".gob")
}

func (c *DiskCache) lockPath(key string) string {
	return filepath.Join(c.dir, HashKey(key)+".lock")
}

func (c *DiskCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	entry := diskEntry{Key: key, Payload: payload}
	if expiration > 0 {
		entry.ExpireAt = time.Now().Add(expiration)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&entry); err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	// Write to a temp file then rename. Rename is atomic, so concurrent
	// writers of the same key settle on one complete entry.
	tmp, err := os.CreateTemp(c.dir, "put-*")
	if err != nil {
		return fmt.Errorf("cache: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close: %w", err)
	}
	if err := os.Rename(tmpName, c.entryPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}

func (c *DiskCache) Get(_ context.Context, key string, dest interface{}) error {
	entry, err := c.readEntry(c.entryPath(key))
	if err != nil {
		return err
	}
	if !entry.ExpireAt.IsZero() && time.Now().After(entry.ExpireAt) {
		_ = os.Remove(c.entryPath(key))
		return ErrCacheMiss
	}
	return decodeValue(entry.Payload, dest)
}

func (c *DiskCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cache: remove: %w", err)
		}
	}
	return nil
}

func (c *DiskCache) DeleteByPattern(_ context.Context, pattern string) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("cache: read dir: %w", err)
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".gob") {
			continue
		}
		full := filepath.Join(c.dir, de.Name())
		entry, err := c.readEntry(full)
		if err != nil {
			continue
		}
		if ok, _ := path.Match(pattern, entry.Key); ok {
			_ = os.Remove(full)
		}
	}
	return nil
}

func (c *DiskCache) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		entry, err := c.readEntry(c.entryPath(key))
		if err != nil {
			continue
		}
		if entry.ExpireAt.IsZero() || time.Now().Before(entry.ExpireAt) {
			return true, nil
		}
	}
	return false, nil
}

// TryLock creates an exclusive lock file. A stale lock (past its ttl) is
// broken and re-acquired once.
func (c *DiskCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	lockFile := c.lockPath(key)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			expire := time.Now().Add(ttl).UTC().Format(time.RFC3339Nano)
			_, werr := f.WriteString(expire)
			f.Close()
			if werr != nil {
				os.Remove(lockFile)
				return false, fmt.Errorf("cache: lock write: %w", werr)
			}
			return true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return false, fmt.Errorf("cache: lock: %w", err)
		}

		data, rerr := os.ReadFile(lockFile)
		if rerr != nil {
			return false, nil
		}
		expire, perr := time.Parse(time.RFC3339Nano, string(data))
		if perr != nil || time.Now().Before(expire) {
			return false, nil
		}
		_ = os.Remove(lockFile)
	}
	return false, nil
}

func (c *DiskCache) Unlock(_ context.Context, key string) error {
	if err := os.Remove(c.lockPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: unlock: %w", err)
	}
	return nil
}

func (c *DiskCache) Close() error {
	return nil
}

func (c *DiskCache) readEntry(full string) (*diskEntry, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache: read: %w", err)
	}
	var entry diskEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, fmt.Errorf("cache: decode entry: %w", err)
	}
	return &entry, nil
}
