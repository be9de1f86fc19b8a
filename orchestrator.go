package ldfcache

import (
	"context"
	"errors"
	"fmt"
)

// State is the orchestrator's position in the cache protocol.
type State int

const (
	// NoCache: fingerprint computed, no entry found for this target.
	NoCache State = iota
	// CacheStale: an entry exists but its fingerprint or signature
	// no longer matches.
	CacheStale
	// CacheValid: fingerprint and signature both match.
	CacheValid
	// Rebuilding: the full build is running.
	Rebuilding
	// Ready: terminal. Outcome.Replayed distinguishes "cache replayed"
	// from "freshly built, cache just written".
	Ready
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case NoCache:
		return "NO_CACHE"
	case CacheStale:
		return "CACHE_STALE"
	case CacheValid:
		return "CACHE_VALID"
	case Rebuilding:
		return "REBUILDING"
	case Ready:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the terminal result of one orchestration run.
//
// Replayed reports whether the cached artifacts were restored and the
// build can proceed directly to linking. When false, a fresh full build
// ran and a new cache entry was written: the calling build must be
// re-invoked to consume it, because the just-finished build already paid
// the full dependency-resolution cost.
type Outcome struct {
	State    State
	Decision State // NoCache, CacheStale or CacheValid
	Target   string
	Entry    *CacheEntry
	Replayed bool
	Restored int        // artifacts copied back on replay
	Build    *RunResult // set when a full build ran
}

// Run drives the cache protocol for one build target: fingerprint, decide
// hit or miss, then either replay the cached result or run the full build
// and persist a fresh entry.
//
// No cache entry is ever written unless the full build reported success,
// so the cache never reflects a build that did not actually complete. A
// build failure leaves any prior entry untouched and still usable.
func (c *Cache) Run(ctx context.Context, target string, cfg *Config) (*Outcome, error) {
	if cfg == nil {
		cfg = DefaultConfig(".")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fingerprinter := &Fingerprinter{
		Fs:         c.fs,
		Hash:       c.hashFunc,
		IgnoreDirs: cfg.IgnoreDirs,
		Extensions: cfg.Extensions,
	}
	fprint, err := fingerprinter.Fingerprint(cfg.ProjectDir)
	if err != nil {
		return nil, err
	}

	decision, entry := c.decide(target, fprint)
	outcome := &Outcome{State: decision, Decision: decision, Target: target}

	if decision == CacheValid {
		if err := c.replay(entry, cfg, outcome); err == nil {
			return outcome, nil
		} else if errors.Is(err, ErrCacheCorrupt) {
			// A missing artifact is corruption, not a fatal error:
			// degrade to a rebuild.
			c.log.Warnf("cache for %s corrupt (%v), rebuilding", target, err)
			outcome.Decision = CacheStale
		} else {
			return nil, err
		}
	}

	if err := c.rebuild(ctx, target, fprint, cfg, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

// decide classifies the current cache state for a target against a fresh
// fingerprint. Corrupt or unparsable entries degrade to CacheStale with a
// warning rather than erroring fatally.
func (c *Cache) decide(target string, fprint *Fingerprint) (State, *CacheEntry) {
	entry, err := c.loadEntry(target)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return NoCache, nil
	case err != nil:
		c.log.Warnf("cache entry for %s unusable (%v), regenerating", target, err)
		return CacheStale, nil
	case !entry.Fingerprint.Equal(fprint):
		c.log.Infof("project files changed, cache for %s invalidated", target)
		return CacheStale, nil
	default:
		return CacheValid, entry
	}
}

// replay restores cached artifacts and re-emits the recorded build order
// so the external build can skip straight to linking.
func (c *Cache) replay(entry *CacheEntry, cfg *Config, outcome *Outcome) error {
	store := c.store(entry.Target, cfg.IgnoreDirs)
	restored, err := store.Restore(entry.Artifacts, cfg.BuildDir)
	if err != nil {
		return err
	}

	if _, _, err := entry.BuildOrder.WriteOrderFiles(c.fs, cfg.OrderDir, entry.Target); err != nil {
		return err
	}

	c.log.Infof("cache replayed for %s: %d artifacts restored", entry.Target, restored)

	outcome.State = Ready
	outcome.Entry = entry
	outcome.Replayed = true
	outcome.Restored = restored
	return nil
}

// rebuild runs the full external build, harvests its ledger and artifacts,
// and persists a new cache entry.
func (c *Cache) rebuild(ctx context.Context, target string, fprint *Fingerprint, cfg *Config, outcome *Outcome) error {
	outcome.State = Rebuilding

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result, err := c.runner.Run(ctx, cfg.BuildCommand, cfg.ProjectDir)
	outcome.Build = result
	if err != nil {
		return stageErr(StageBuild, "", fmt.Errorf("%w: %v", ErrBuildFailed, err))
	}
	if result.ExitCode != 0 {
		return stageErr(StageBuild, "", fmt.Errorf("%w: exit code %d", ErrBuildFailed, result.ExitCode))
	}

	records, err := LoadCompileCommands(c.fs, cfg.CompileCommands)
	if err != nil {
		return err
	}
	ledger, err := BuildLedger(records)
	if err != nil {
		return err
	}
	if ledger.Dropped > 0 {
		c.log.Debugf("ledger for %s: %d non-compile records dropped", target, ledger.Dropped)
	}

	order, err := Resolve(ledger)
	if err != nil {
		return err
	}
	if _, _, err := order.WriteOrderFiles(c.fs, cfg.OrderDir, target); err != nil {
		return err
	}

	store := c.store(target, cfg.IgnoreDirs)
	artifacts, err := store.Store(cfg.BuildDir)
	if err != nil {
		return err
	}

	entry := &CacheEntry{
		Target:      target,
		Fingerprint: fprint,
		BuildOrder:  order,
		Artifacts:   artifacts,
		CreatedAt:   c.now(),
	}
	if err := c.saveEntry(entry); err != nil {
		return err
	}

	c.log.Infof("cache written for %s: %d compile records, %d artifacts; rerun to consume it",
		target, len(order.CompileOrder), len(artifacts))

	outcome.State = Ready
	outcome.Entry = entry
	outcome.Replayed = false
	return nil
}
