/*
Package ldfcache provides a build-cache and build-order reconstruction engine
for builds whose dependency-resolution pass is expensive enough to be worth
running only once.

It fingerprints a source tree to decide whether a previous build's dependency
resolution is still valid, reconstructs the correct compile/link ordering from
compiler-invocation records, and caches the compiled objects and archives
keyed by that fingerprint.

# Overview

The engine implements a two-phase "resolve once, replay many times" protocol:

 1. First run: the full build executes with dependency resolution active.
    The engine harvests the compile-command ledger and the produced
    artifacts, and persists a fingerprint-keyed cache entry.
 2. Second run: the fingerprint still matches, so the engine restores the
    cached artifacts and supplies the recorded compile/link order, letting
    the build skip straight to linking.

# Core Architecture

The cache root uses a two-level structure:

  - entries/   - One JSON entry per build target (fingerprint, build order,
    artifact index, signature)
  - artifacts/ - The cached object and archive files, one subtree per target

Content hashing uses xxHash by default. Every cache entry carries a
signature over its own serialized content so corruption is detected
independently of fingerprint matching.

# Basic Usage

Opening a cache and running the orchestrator:

	cache, err := ldfcache.Open(".ldfcache")
	if err != nil {
	    log.Fatalf("failed to open cache: %v", err)
	}

	cfg := ldfcache.DefaultConfig(".")
	cfg.BuildCommand = []string{"pio", "run", "-e", "esp32"}

	outcome, err := cache.Run(ctx, "esp32", cfg)
	if err != nil {
	    log.Fatalf("orchestration failed: %v", err)
	}

	if outcome.Replayed {
	    // Cached artifacts restored, proceed to linking.
	} else {
	    // Fresh build completed and cache written; rerun to consume it.
	}

The components compose bottom-up and are usable on their own:

	fp := &ldfcache.Fingerprinter{Extensions: []string{".c", ".h"}}
	print, err := fp.Fingerprint("src")

	records, err := ldfcache.LoadCompileCommands(fs, "compile_commands.json")
	ledger, err := ldfcache.BuildLedger(records)
	order, err := ldfcache.Resolve(ledger)

# Error Handling

The package defines sentinel errors for the failure kinds of the pipeline:

  - ErrCacheMiss: no entry exists for the build target
  - ErrCacheCorrupt: entry signature mismatch or missing cached artifact
  - ErrParse: ledger input malformed or empty
  - ErrMissingRoot: fingerprint root directory does not exist
  - ErrBuildFailed: external full build returned non-zero or timed out

Failures during fingerprinting or ledger building abort the operation; a
corrupt cache entry degrades to a stale state and forces a rebuild instead
of crashing. Errors surfaced from the pipeline are wrapped in a StageError
naming the stage and the file that caused the failure.
*/
package ldfcache
