package ldfcache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// CacheEntry is the persisted result of one successful full build for a
// build target. It is created exactly once per full build and replaced
// wholesale on the next miss, never partially mutated in place.
//
// Signature is a hash over the entry's own serialized content with the
// signature field blanked, so corruption is detected independently of
// fingerprint matching.
type CacheEntry struct {
	Target      string          `json:"target"`
	Fingerprint *Fingerprint    `json:"fingerprint"`
	BuildOrder  *BuildOrder     `json:"buildOrder"`
	Artifacts   []ArtifactEntry `json:"artifacts"`
	CreatedAt   time.Time       `json:"createdAt"`
	Signature   string          `json:"signature"`
}

// computeSignature hashes the entry's serialized content, excluding the
// signature field itself.
func (e *CacheEntry) computeSignature(newHash HashFunc) (string, error) {
	unsigned := *e
	unsigned.Signature = ""

	data, err := json.Marshal(&unsigned)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entry: %w", err)
	}

	h := newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// saveEntry signs and persists an entry. The entry is written to a
// temporary file and renamed into place, so a concurrently reading process
// never observes a half-written entry.
func (c *Cache) saveEntry(entry *CacheEntry) error {
	signature, err := entry.computeSignature(c.hashFunc)
	if err != nil {
		return stageErr(StageEntry, c.entryPath(entry.Target), err)
	}
	entry.Signature = signature

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return stageErr(StageEntry, c.entryPath(entry.Target), err)
	}

	path := c.entryPath(entry.Target)
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return stageErr(StageEntry, path, err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, data, 0o644); err != nil {
		return stageErr(StageEntry, tmp, err)
	}
	if err := c.fs.Rename(tmp, path); err != nil {
		_ = c.fs.Remove(tmp)
		return stageErr(StageEntry, path, err)
	}

	return nil
}

// loadEntry reads and validates the entry for a build target.
// A missing entry fails with ErrCacheMiss; an unparsable entry or a
// signature mismatch fails with ErrCacheCorrupt. Callers degrade both to
// a rebuild rather than erroring fatally.
func (c *Cache) loadEntry(target string) (*CacheEntry, error) {
	path := c.entryPath(target)

	exists, err := afero.Exists(c.fs, path)
	if err != nil {
		return nil, stageErr(StageEntry, path, err)
	}
	if !exists {
		return nil, ErrCacheMiss
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, stageErr(StageEntry, path, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, stageErr(StageEntry, path, fmt.Errorf("%w: %v", ErrCacheCorrupt, err))
	}

	signature, err := entry.computeSignature(c.hashFunc)
	if err != nil {
		return nil, stageErr(StageEntry, path, err)
	}
	if signature != entry.Signature {
		return nil, stageErr(StageEntry, path, fmt.Errorf("%w: signature mismatch", ErrCacheCorrupt))
	}

	return &entry, nil
}
