package ldfcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RunResult captures the outcome of an external command as structured data
// rather than printed side effects.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes an external command given as an argument vector.
// Implementations must not pass the command through a shell.
type Runner interface {
	Run(ctx context.Context, argv []string, dir string) (*RunResult, error)
}

// ExecRunner runs commands via os/exec with captured stdout and stderr.
type ExecRunner struct{}

// Run implements the Runner interface. The context controls cancellation
// and timeouts; a cancelled command surfaces the context error.
func (ExecRunner) Run(ctx context.Context, argv []string, dir string) (*RunResult, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrBuildFailed)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	result := &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}
