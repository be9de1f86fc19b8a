package ldfcache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Fingerprint represents the aggregate content state of a source tree.
// AggregateHash is a deterministic combination of all per-file hashes in
// path-sorted order, so identical file contents and an identical file set
// always produce the same value regardless of filesystem walk order.
type Fingerprint struct {
	AggregateHash string            `json:"aggregateHash"`
	Files         map[string]string `json:"files"` // relative path -> content hash
}

// FingerprintDiff lists the per-file differences between two fingerprints.
type FingerprintDiff struct {
	Added   []string
	Removed []string
	Changed []string
}

// Fingerprinter walks a project tree, hashing every relevant file and
// combining the per-file hashes into one aggregate fingerprint.
//
// Directory subtrees whose name appears in IgnoreDirs are pruned before
// descending, so excluded trees are never read. Only files whose extension
// appears in Extensions are hashed.
type Fingerprinter struct {
	Fs         afero.Fs // defaults to the OS filesystem
	Hash       HashFunc // defaults to xxHash64
	IgnoreDirs []string
	Extensions []string

	// Parallelism bounds the number of concurrent per-file hashes.
	// Zero or negative means GOMAXPROCS. Aggregation is order-independent,
	// so parallel hashing never changes the result.
	Parallelism int
}

// Fingerprint computes the fingerprint of the tree rooted at root.
// It fails with ErrMissingRoot if root does not exist.
func (fp *Fingerprinter) Fingerprint(root string) (*Fingerprint, error) {
	fs := fp.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	newHash := fp.Hash
	if newHash == nil {
		newHash = defaultHashFunc
	}

	exists, err := afero.DirExists(fs, root)
	if err != nil {
		return nil, stageErr(StageFingerprint, root, err)
	}
	if !exists {
		return nil, stageErr(StageFingerprint, root, ErrMissingRoot)
	}

	ignored := toSet(fp.IgnoreDirs)
	relevant := toSet(fp.Extensions)

	// Collect relevant paths first, pruning ignored subtrees before
	// descending into them.
	var paths []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root {
				if _, skip := ignored[filepath.Base(path)]; skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if _, ok := relevant[filepath.Ext(path)]; !ok {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stageErr(StageFingerprint, root, err)
	}

	files := make(map[string]string, len(paths))
	var mu sync.Mutex

	limit := fp.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, path := range paths {
		g.Go(func() error {
			sum, err := HashFile(fs, path, newHash)
			if err != nil {
				return stageErr(StageFingerprint, path, err)
			}
			mu.Lock()
			files[relativePath(root, path)] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Fingerprint{
		AggregateHash: aggregateHash(files, newHash),
		Files:         files,
	}, nil
}

// aggregateHash combines per-file hashes in path-sorted order.
func aggregateHash(files map[string]string, newHash HashFunc) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	h := newHash()
	fmt.Fprintf(h, "%d", len(paths))
	for _, path := range paths {
		h.Write([]byte(path))
		h.Write([]byte(files[path]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two fingerprints describe identical tree states.
func (f *Fingerprint) Equal(other *Fingerprint) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.AggregateHash == other.AggregateHash
}

// Diff compares this fingerprint against an older one and returns the
// added, removed and changed relative paths, each list sorted.
func (f *Fingerprint) Diff(old *Fingerprint) FingerprintDiff {
	var diff FingerprintDiff

	var oldFiles map[string]string
	if old != nil {
		oldFiles = old.Files
	}

	for path, sum := range f.Files {
		prev, ok := oldFiles[path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, path)
		case prev != sum:
			diff.Changed = append(diff.Changed, path)
		}
	}
	for path := range oldFiles {
		if _, ok := f.Files[path]; !ok {
			diff.Removed = append(diff.Removed, path)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff
}

// relativePath returns path relative to root with forward slashes, falling
// back to the cleaned path when it lies outside root.
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// toSet converts a string slice to a membership set.
func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
