package artcache

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/track"
)

// LoadFrom replays a checkpoint directory. Each regular file is an entry
// whose name is the track key and whose content is the URL. Files that fail
// to parse are logged and skipped. Entries already present are kept.
// Returns the number of entries loaded.
func (c *Cache) LoadFrom(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read cache directory: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		id, err := track.ParseKey(e.Name())
		if err != nil {
			c.log.Warn("skipping cache file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			c.log.Warn("failed to read cache file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}

		u := strings.TrimSpace(string(data))
		if err := validateURL(u); err != nil {
			c.log.Warn("skipping cache file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}

		c.mu.Lock()
		_, isPending := c.pending[id.Key()]
		if !isPending && !c.settled.Contains(id.Key()) {
			c.settled.Add(id.Key(), resolvedFuture(u, nil))
			loaded++
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.log.Info("loaded artwork cache", zap.String("dir", dir), zap.Int("entries", loaded))
	return loaded, nil
}

type savedEntry struct {
	key string
	url string
}

// SaveTo rewrites dir with one file per resolved entry. Regular files
// already in dir are removed first. Pending and failed entries are not
// written. The entry set is snapshotted under the lock; file I/O happens
// outside it so concurrent Get calls are not blocked. Concurrent saves are
// serialized. Returns the number of entries written.
func (c *Cache) SaveTo(dir string) (int, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	snapshot := make([]savedEntry, 0, c.settled.Len())
	for _, key := range c.settled.Keys() {
		f, ok := c.settled.Peek(key)
		if !ok || !f.succeeded() {
			continue
		}
		snapshot = append(snapshot, savedEntry{key: key, url: f.url})
	}
	c.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cache directory: %w", err)
	}

	existing, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read cache directory: %w", err)
	}
	for _, e := range existing {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			c.log.Error("failed to clear cache file", zap.String("file", e.Name()), zap.Error(err))
		}
	}

	written := 0
	for _, e := range snapshot {
		path := filepath.Join(dir, e.key)
		if err := os.WriteFile(path, []byte(e.url), 0o600); err != nil {
			c.log.Error("failed to write cache file", zap.String("file", e.key), zap.Error(err))
			continue
		}
		written++
	}

	c.log.Info("saved artwork cache", zap.String("dir", dir), zap.Int("entries", written))
	return written, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}
