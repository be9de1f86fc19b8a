package ldfcache

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/proj")

	if cfg.ProjectDir != "/proj" {
		t.Fatalf("Unexpected project dir: %s", cfg.ProjectDir)
	}
	if cfg.BuildDir != "/proj/build" {
		t.Fatalf("Unexpected build dir: %s", cfg.BuildDir)
	}
	if cfg.OrderDir != "/proj/build" {
		t.Fatalf("Unexpected order dir: %s", cfg.OrderDir)
	}
	if cfg.CompileCommands != "/proj/build/compile_commands.json" {
		t.Fatalf("Unexpected compile commands path: %s", cfg.CompileCommands)
	}
	if len(cfg.IgnoreDirs) == 0 || len(cfg.Extensions) == 0 {
		t.Fatal("Default ignore dirs or extensions missing")
	}
	if cfg.Timeout != 0 {
		t.Fatalf("Expected no default timeout, got %v", cfg.Timeout)
	}
}

func TestLoadConfig(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/ldfcache.yaml", []byte(`
projectDir: /proj
buildDir: /proj/.pio/build/esp32
buildCommand: [pio, run, -e, esp32]
ignoreDirs: [.git, .pio]
extensions: [".c", ".cpp", ".h"]
timeout: 30m
`))

	cfg, err := LoadConfig(memFs, "/proj/ldfcache.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.BuildDir != "/proj/.pio/build/esp32" {
		t.Fatalf("Unexpected build dir: %s", cfg.BuildDir)
	}
	// Unset fields fall back to defaults derived from the set ones.
	if cfg.OrderDir != "/proj/.pio/build/esp32" {
		t.Fatalf("Unexpected order dir: %s", cfg.OrderDir)
	}
	if cfg.CompileCommands != "/proj/.pio/build/esp32/compile_commands.json" {
		t.Fatalf("Unexpected compile commands path: %s", cfg.CompileCommands)
	}
	assertStringsEqual(t, cfg.BuildCommand, []string{"pio", "run", "-e", "esp32"}, "BuildCommand")
	assertStringsEqual(t, cfg.IgnoreDirs, []string{".git", ".pio"}, "IgnoreDirs")
	assertStringsEqual(t, cfg.Extensions, []string{".c", ".cpp", ".h"}, "Extensions")
	if cfg.Timeout != 30*time.Minute {
		t.Fatalf("Unexpected timeout: %v", cfg.Timeout)
	}
}

func TestLoadConfigInvalidTimeout(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/ldfcache.yaml", []byte("timeout: soon"))

	if _, err := LoadConfig(memFs, "/proj/ldfcache.yaml"); err == nil {
		t.Fatal("Expected error for an unparsable timeout, got nil")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	memFs := afero.NewMemMapFs()
	createTestFile(t, memFs, "/proj/ldfcache.yaml", []byte("projectDir: [unclosed"))

	if _, err := LoadConfig(memFs, "/proj/ldfcache.yaml"); err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(afero.NewMemMapFs(), "/nope.yaml"); err == nil {
		t.Fatal("Expected error for a missing config file, got nil")
	}
}
