package ldfcache

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrCacheMiss is returned when no cache entry exists for a build target.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupt is returned when a cache entry fails signature
	// validation or references a cached artifact that no longer exists.
	ErrCacheCorrupt = errors.New("cache corrupt")

	// ErrParse is returned when compile-command input is malformed or empty.
	ErrParse = errors.New("ledger parse failed")

	// ErrMissingRoot is returned when the fingerprint root directory
	// does not exist.
	ErrMissingRoot = errors.New("root directory does not exist")

	// ErrBuildFailed is returned when the external full build exits
	// non-zero or is cancelled before completing.
	ErrBuildFailed = errors.New("build failed")
)

// Pipeline stages, used by StageError to report where a failure occurred.
const (
	StageFingerprint = "fingerprint"
	StageLedger      = "ledger"
	StageOrder       = "order"
	StageStore       = "store"
	StageRestore     = "restore"
	StageBuild       = "build"
	StageEntry       = "entry"
)

// StageError wraps a pipeline failure with the stage it occurred in and the
// file or record that caused it. Path may be empty when the failure is not
// tied to a single file.
type StageError struct {
	Stage string
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Path, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}

// stageErr builds a StageError around err. Sentinel comparisons with
// errors.Is keep working through the wrapping.
func stageErr(stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}
