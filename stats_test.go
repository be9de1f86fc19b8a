package ldfcache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

// seedTarget persists an entry created at the given time with one artifact
// on disk.
func seedTarget(t *testing.T, cache *Cache, target string, createdAt time.Time) {
	t.Helper()

	entry := testEntry(t, target)
	entry.CreatedAt = createdAt
	if err := cache.saveEntry(entry); err != nil {
		t.Fatalf("Failed to save entry for %s: %v", target, err)
	}
	createTestFile(t, cache.fs, "/cache/artifacts/"+target+"/lib/core.o", []byte("0123456789"))
}

func TestStats(t *testing.T) {
	cache, _ := openTestCache(t)

	now := fixedNowFunc()
	seedTarget(t, cache, "esp32", now.Add(-48*time.Hour))
	seedTarget(t, cache, "esp8266", now.Add(-time.Hour))

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.Targets != 2 {
		t.Fatalf("Expected 2 targets, got %d", stats.Targets)
	}
	if stats.TotalSize != 20 {
		t.Fatalf("Expected total size 20, got %d", stats.TotalSize)
	}
	if stats.OldestEntry != 48*time.Hour {
		t.Fatalf("Expected oldest age 48h, got %v", stats.OldestEntry)
	}
	if stats.NewestEntry != time.Hour {
		t.Fatalf("Expected newest age 1h, got %v", stats.NewestEntry)
	}
}

func TestStatsEmptyCache(t *testing.T) {
	cache, _ := openTestCache(t)

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Targets != 0 || stats.TotalSize != 0 {
		t.Fatalf("Expected empty stats, got %+v", stats)
	}
}

func TestEntries(t *testing.T) {
	cache, _ := openTestCache(t)

	now := fixedNowFunc()
	seedTarget(t, cache, "esp32", now)

	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	info := entries[0]
	if info.Target != "esp32" {
		t.Fatalf("Unexpected target: %s", info.Target)
	}
	if info.ArtifactCount != 1 {
		t.Fatalf("Expected 1 artifact, got %d", info.ArtifactCount)
	}
	if info.Size != 10 {
		t.Fatalf("Expected size 10, got %d", info.Size)
	}
	if !info.CreatedAt.Equal(now) {
		t.Fatalf("Unexpected creation time: %v", info.CreatedAt)
	}
}

func TestEntriesSkipCorrupt(t *testing.T) {
	cache, memFs := openTestCache(t)

	seedTarget(t, cache, "esp32", fixedNowFunc())
	createTestFile(t, memFs, "/cache/entries/broken.json", []byte("{corrupted"))

	entries, err := cache.Entries()
	if err != nil {
		t.Fatalf("Failed to list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected corrupt entry to be skipped, got %d entries", len(entries))
	}
}

func TestPrune(t *testing.T) {
	cache, memFs := openTestCache(t)

	now := fixedNowFunc()
	seedTarget(t, cache, "old", now.Add(-72*time.Hour))
	seedTarget(t, cache, "fresh", now.Add(-time.Hour))

	removed, err := cache.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 pruned target, got %d", removed)
	}

	if _, err := cache.loadEntry("old"); err == nil {
		t.Fatal("Pruned entry still loads")
	}
	if exists, _ := afero.DirExists(memFs, "/cache/artifacts/old"); exists {
		t.Fatal("Pruned target's artifacts survived")
	}
	if _, err := cache.loadEntry("fresh"); err != nil {
		t.Fatalf("Fresh entry was pruned: %v", err)
	}
}
