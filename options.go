package ldfcache

import (
	"github.com/apex/log"
	"github.com/spf13/afero"
)

// WithFs sets a custom filesystem for the cache.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	cache, err := ldfcache.Open(".ldfcache", ldfcache.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(c *Cache) {
		c.fs = fs
	}
}

// WithHashFunc sets a custom hash function for the cache.
// The default is xxHash64, which provides excellent performance.
//
// Note: Changing the hash function will invalidate existing cache entries.
func WithHashFunc(hashFunc HashFunc) Option {
	return func(c *Cache) {
		c.hashFunc = hashFunc
	}
}

// WithNowFunc sets a custom time function for the cache.
// This is primarily useful for testing with deterministic timestamps.
func WithNowFunc(nowFunc NowFunc) Option {
	return func(c *Cache) {
		c.nowFunc = nowFunc
	}
}

// WithLogger sets the logger used for warnings and progress messages.
// The default is the apex/log package logger.
func WithLogger(logger log.Interface) Option {
	return func(c *Cache) {
		c.log = logger
	}
}

// WithRunner sets the runner used to invoke the external full build.
// The default executes commands via os/exec without shell interpretation.
func WithRunner(runner Runner) Option {
	return func(c *Cache) {
		c.runner = runner
	}
}
