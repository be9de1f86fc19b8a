package ldfcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ArtifactKind distinguishes cached object files from static archives.
type ArtifactKind string

const (
	ArtifactObject  ArtifactKind = "object"
	ArtifactArchive ArtifactKind = "archive"
)

// ArtifactEntry records one cached artifact. Both paths are relative so
// the cache stays portable across machines with different project
// locations: OriginalPath relative to the build output directory,
// CachePath relative to the store root.
type ArtifactEntry struct {
	OriginalPath string       `json:"originalPath"`
	CachePath    string       `json:"cachePath"`
	Kind         ArtifactKind `json:"kind"`
}

// ArtifactStore copies compiled objects and archives produced by a build
// into a cache area, and restores them on a cache hit.
type ArtifactStore struct {
	Fs         afero.Fs // defaults to the OS filesystem
	Root       string   // cache-side directory holding the artifacts
	IgnoreDirs []string // directory names never descended into
}

// Store walks buildDir and copies every object and archive file into the
// store root, preserving relative structure. Object files living under a
// "src" or "ld" path segment are skipped: those are project-specific
// outputs expected to always be rebuilt, not shared library objects worth
// caching.
//
// Files are first copied into a staging directory which is renamed into
// place only on full success, so a failed store never leaves a partially
// populated root behind.
func (s *ArtifactStore) Store(buildDir string) ([]ArtifactEntry, error) {
	fs := s.fs()

	exists, err := afero.DirExists(fs, buildDir)
	if err != nil {
		return nil, stageErr(StageStore, buildDir, err)
	}
	if !exists {
		return nil, stageErr(StageStore, buildDir, ErrMissingRoot)
	}

	staging := s.Root + ".stage"
	if err := fs.RemoveAll(staging); err != nil {
		return nil, stageErr(StageStore, staging, err)
	}
	if err := fs.MkdirAll(staging, 0o755); err != nil {
		return nil, stageErr(StageStore, staging, err)
	}

	ignored := toSet(s.IgnoreDirs)
	var entries []ArtifactEntry

	err = afero.Walk(fs, buildDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != buildDir {
				if _, skip := ignored[filepath.Base(path)]; skip {
					return filepath.SkipDir
				}
			}
			return nil
		}

		kind, ok := artifactKind(path)
		if !ok {
			return nil
		}

		rel := relativePath(buildDir, path)
		if kind == ArtifactObject && underProjectTree(rel) {
			return nil
		}

		dst := filepath.Join(staging, filepath.FromSlash(rel))
		if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(fs, path, dst); err != nil {
			return err
		}

		entries = append(entries, ArtifactEntry{
			OriginalPath: rel,
			CachePath:    rel,
			Kind:         kind,
		})
		return nil
	})
	if err != nil {
		// Abandon the staging directory so the previous root, if any,
		// stays intact and valid.
		_ = fs.RemoveAll(staging)
		return nil, stageErr(StageStore, buildDir, err)
	}

	if err := fs.RemoveAll(s.Root); err != nil {
		_ = fs.RemoveAll(staging)
		return nil, stageErr(StageStore, s.Root, err)
	}
	if err := fs.MkdirAll(filepath.Dir(s.Root), 0o755); err != nil {
		_ = fs.RemoveAll(staging)
		return nil, stageErr(StageStore, s.Root, err)
	}
	if err := fs.Rename(staging, s.Root); err != nil {
		_ = fs.RemoveAll(staging)
		return nil, stageErr(StageStore, s.Root, err)
	}

	return entries, nil
}

// Restore copies cached artifacts back to their original relative
// locations under buildDir. It fails with ErrCacheCorrupt if a referenced
// cache path is missing. Returns the number of files copied.
func (s *ArtifactStore) Restore(entries []ArtifactEntry, buildDir string) (int, error) {
	fs := s.fs()

	restored := 0
	for _, entry := range entries {
		src := filepath.Join(s.Root, filepath.FromSlash(entry.CachePath))

		exists, err := afero.Exists(fs, src)
		if err != nil {
			return restored, stageErr(StageRestore, src, err)
		}
		if !exists {
			return restored, stageErr(StageRestore, src, fmt.Errorf("%w: cached artifact missing", ErrCacheCorrupt))
		}

		dst := filepath.Join(buildDir, filepath.FromSlash(entry.OriginalPath))
		if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return restored, stageErr(StageRestore, dst, err)
		}
		if err := copyFile(fs, src, dst); err != nil {
			return restored, stageErr(StageRestore, dst, err)
		}
		restored++
	}

	return restored, nil
}

// fs returns the configured filesystem, defaulting to the OS filesystem.
func (s *ArtifactStore) fs() afero.Fs {
	if s.Fs == nil {
		return afero.NewOsFs()
	}
	return s.Fs
}

// artifactKind classifies a path by extension.
func artifactKind(path string) (ArtifactKind, bool) {
	switch filepath.Ext(path) {
	case ".o":
		return ArtifactObject, true
	case ".a":
		return ArtifactArchive, true
	default:
		return "", false
	}
}

// underProjectTree reports whether a slash-relative path contains a "src"
// or "ld" segment.
func underProjectTree(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == "src" || part == "ld" {
			return true
		}
	}
	return false
}

// copyFile copies a file from src to dst using a pooled buffer.
func copyFile(fs afero.Fs, src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer dstFile.Close()

	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(dstFile, srcFile, buffer); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return nil
}
