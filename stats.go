package ldfcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Stats represents cache-wide statistics.
type Stats struct {
	Targets     int           // Number of build targets with a cache entry
	TotalSize   int64         // Total size of all cached artifacts in bytes
	OldestEntry time.Duration // Age of the oldest entry
	NewestEntry time.Duration // Age of the newest entry
}

// EntryInfo summarizes one cached build target for iteration.
type EntryInfo struct {
	Target        string
	CreatedAt     time.Time
	Size          int64
	ArtifactCount int
}

// Stats returns statistics about the cache.
func (c *Cache) Stats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{}
	var oldest, newest time.Time

	err := c.walkEntries(func(entry *CacheEntry) error {
		stats.Targets++

		if oldest.IsZero() || entry.CreatedAt.Before(oldest) {
			oldest = entry.CreatedAt
		}
		if newest.IsZero() || entry.CreatedAt.After(newest) {
			newest = entry.CreatedAt
		}

		size, _ := c.dirSize(c.artifactDir(entry.Target))
		stats.TotalSize += size

		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	now := c.now()
	if !oldest.IsZero() {
		stats.OldestEntry = now.Sub(oldest)
	}
	if !newest.IsZero() {
		stats.NewestEntry = now.Sub(newest)
	}

	return stats, nil
}

// Entries returns a summary of every cached build target.
func (c *Cache) Entries() ([]EntryInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []EntryInfo

	err := c.walkEntries(func(entry *CacheEntry) error {
		size, _ := c.dirSize(c.artifactDir(entry.Target))
		entries = append(entries, EntryInfo{
			Target:        entry.Target,
			CreatedAt:     entry.CreatedAt,
			Size:          size,
			ArtifactCount: len(entry.Artifacts),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Prune removes cache entries older than the given duration.
// Returns the number of targets removed.
func (c *Cache) Prune(olderThan time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-olderThan)
	var toRemove []string

	err := c.walkEntries(func(entry *CacheEntry) error {
		if entry.CreatedAt.Before(cutoff) {
			toRemove = append(toRemove, entry.Target)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, target := range toRemove {
		if err := c.deleteTarget(target); err != nil {
			return count, fmt.Errorf("failed to remove target %s: %w", target, err)
		}
		count++
	}

	return count, nil
}

// walkEntries walks all entry files and calls fn for each loadable entry.
// Corrupt entries are skipped; Run regenerates them on the next attempt.
func (c *Cache) walkEntries(fn func(entry *CacheEntry) error) error {
	return afero.Walk(c.fs, c.entriesDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		target := strings.TrimSuffix(filepath.Base(path), ".json")
		entry, err := c.loadEntry(target)
		if err != nil {
			return nil
		}

		return fn(entry)
	})
}

// dirSize calculates the total size of all files in a directory.
func (c *Cache) dirSize(dir string) (int64, error) {
	var size int64

	exists, err := afero.DirExists(c.fs, dir)
	if err != nil || !exists {
		return 0, err
	}

	err = afero.Walk(c.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})

	return size, err
}
