package ldfcache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/spf13/afero"
)

// NowFunc defines a function that returns the current time.
type NowFunc func() time.Time

// Cache is the top-level build cache. It owns the lifecycle of cache
// entries: creation, validation, invalidation and deletion. All other
// components operate on transient, request-scoped data.
type Cache struct {
	root     string
	fs       afero.Fs
	hashFunc HashFunc
	nowFunc  NowFunc
	log      log.Interface
	runner   Runner
	mu       sync.RWMutex
}

// Option defines a function that configures a Cache.
type Option func(*Cache)

// Open creates a cache rooted at the given directory, creating the
// directory layout if it doesn't exist. It uses the OS filesystem and
// xxHash64 by default; both can be overridden with options.
func Open(root string, options ...Option) (*Cache, error) {
	cache := &Cache{
		root:     root,
		fs:       afero.NewOsFs(),
		hashFunc: defaultHashFunc,
		nowFunc:  time.Now,
		log:      log.Log,
		runner:   ExecRunner{},
	}

	for _, option := range options {
		option(cache)
	}

	if err := cache.fs.MkdirAll(cache.entriesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create entries directory: %w", err)
	}
	if err := cache.fs.MkdirAll(cache.artifactsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	return cache, nil
}

// Delete removes the cache entry and artifacts for a build target.
func (c *Cache) Delete(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deleteTarget(target)
}

// Clear removes all entries and artifacts from the cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fs.RemoveAll(c.entriesDir()); err != nil {
		return fmt.Errorf("failed to remove entries: %w", err)
	}
	if err := c.fs.RemoveAll(c.artifactsDir()); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	if err := c.fs.MkdirAll(c.entriesDir(), 0o755); err != nil {
		return fmt.Errorf("failed to recreate entries directory: %w", err)
	}
	if err := c.fs.MkdirAll(c.artifactsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to recreate artifacts directory: %w", err)
	}

	return nil
}

// deleteTarget removes one target without taking the lock.
func (c *Cache) deleteTarget(target string) error {
	entryPath := c.entryPath(target)
	if exists, _ := afero.Exists(c.fs, entryPath); exists {
		if err := c.fs.Remove(entryPath); err != nil {
			return fmt.Errorf("failed to remove entry: %w", err)
		}
	}

	artifactDir := c.artifactDir(target)
	if exists, _ := afero.Exists(c.fs, artifactDir); exists {
		if err := c.fs.RemoveAll(artifactDir); err != nil {
			return fmt.Errorf("failed to remove artifacts: %w", err)
		}
	}

	return nil
}

// entriesDir returns the path to the entries directory.
func (c *Cache) entriesDir() string {
	return filepath.Join(c.root, "entries")
}

// artifactsDir returns the path to the artifacts directory.
func (c *Cache) artifactsDir() string {
	return filepath.Join(c.root, "artifacts")
}

// entryPath returns the deterministic entry file path for a build target.
func (c *Cache) entryPath(target string) string {
	return filepath.Join(c.entriesDir(), target+".json")
}

// artifactDir returns the artifact subtree for a build target.
func (c *Cache) artifactDir(target string) string {
	return filepath.Join(c.artifactsDir(), target)
}

// store returns the artifact store for a build target.
func (c *Cache) store(target string, ignoreDirs []string) *ArtifactStore {
	return &ArtifactStore{
		Fs:         c.fs,
		Root:       c.artifactDir(target),
		IgnoreDirs: ignoreDirs,
	}
}

// now returns the current time.
func (c *Cache) now() time.Time {
	return c.nowFunc()
}
