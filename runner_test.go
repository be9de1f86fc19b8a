package ldfcache

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecRunnerEmptyCommand(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), nil, "")
	if !errors.Is(err, ErrBuildFailed) {
		t.Fatalf("Expected ErrBuildFailed for an empty command, got %v", err)
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	result, err := ExecRunner{}.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, "")
	if err != nil {
		t.Fatalf("Failed to run command: %v", err)
	}

	if result.ExitCode != 0 {
		t.Fatalf("Expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "out" {
		t.Fatalf("Unexpected stdout: %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "err" {
		t.Fatalf("Unexpected stderr: %q", result.Stderr)
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	result, err := ExecRunner{}.Run(context.Background(), []string{"sh", "-c", "exit 3"}, "")
	if err != nil {
		t.Fatalf("Expected nil error for a non-zero exit, got %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("Expected exit code 3, got %d", result.ExitCode)
	}
}

func TestExecRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecRunner{}.Run(ctx, []string{"sh", "-c", "sleep 10"}, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
