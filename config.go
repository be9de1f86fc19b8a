package ldfcache

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Default directory names never descended into while fingerprinting or
// harvesting artifacts: VCS metadata, editor state, generated trees and
// tool caches can't affect the compiled output or the dependency graph.
var defaultIgnoreDirs = []string{
	".git", ".github", ".cache", ".vscode", ".pio",
	"boards", "data", "build", "tools", "__pycache__", "variants",
}

// Default relevant extensions: headers, sources and build configuration.
// Only these file kinds can change the dependency graph or the compiled
// output, so a fingerprint over them is sufficient for invalidation.
var defaultExtensions = []string{
	".h", ".hpp", ".hxx", ".h++", ".hh", ".inc", ".tpp", ".tcc",
	".c", ".cpp", ".cxx", ".c++", ".cc", ".ino",
	".json", ".properties", ".txt", ".ini",
}

// Config is the explicit, enumerated build configuration consumed by the
// orchestrator. It is populated once at the external-build-invocation
// boundary; nothing in the pipeline reads ambient build-tool state.
type Config struct {
	// ProjectDir is the fingerprint root.
	ProjectDir string `yaml:"projectDir"`

	// BuildDir is where the external build emits objects and archives,
	// and where cached artifacts are restored to on a hit.
	BuildDir string `yaml:"buildDir"`

	// OrderDir is where the build/link order text files are written.
	OrderDir string `yaml:"orderDir"`

	// CompileCommands is the path of the compile_commands.json export
	// produced by the full build.
	CompileCommands string `yaml:"compileCommands"`

	// BuildCommand is the argument vector of the external full build.
	BuildCommand []string `yaml:"buildCommand"`

	// IgnoreDirs and Extensions control the fingerprint scope.
	IgnoreDirs []string `yaml:"ignoreDirs"`
	Extensions []string `yaml:"extensions"`

	// Timeout bounds the external full build. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML implements yaml.Unmarshaler so the timeout can be written
// as a duration string ("30m", "1h30m") instead of nanoseconds.
func (cfg *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ProjectDir      string   `yaml:"projectDir"`
		BuildDir        string   `yaml:"buildDir"`
		OrderDir        string   `yaml:"orderDir"`
		CompileCommands string   `yaml:"compileCommands"`
		BuildCommand    []string `yaml:"buildCommand"`
		IgnoreDirs      []string `yaml:"ignoreDirs"`
		Extensions      []string `yaml:"extensions"`
		Timeout         string   `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	cfg.ProjectDir = raw.ProjectDir
	cfg.BuildDir = raw.BuildDir
	cfg.OrderDir = raw.OrderDir
	cfg.CompileCommands = raw.CompileCommands
	cfg.BuildCommand = raw.BuildCommand
	cfg.IgnoreDirs = raw.IgnoreDirs
	cfg.Extensions = raw.Extensions

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		cfg.Timeout = timeout
	}

	return nil
}

// DefaultConfig returns a config for the given project directory with the
// default ignore list, extension set and conventional paths filled in.
func DefaultConfig(projectDir string) *Config {
	cfg := &Config{ProjectDir: projectDir}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML config file and fills in defaults for anything
// it leaves unset.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills unset fields with their conventional values.
func (cfg *Config) applyDefaults() {
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "."
	}
	if cfg.BuildDir == "" {
		cfg.BuildDir = filepath.Join(cfg.ProjectDir, "build")
	}
	// Order files and the compile-commands export land in the build
	// directory: it sits on the ignore list, so the pipeline's own outputs
	// never feed back into the next fingerprint.
	if cfg.OrderDir == "" {
		cfg.OrderDir = cfg.BuildDir
	}
	if cfg.CompileCommands == "" {
		cfg.CompileCommands = filepath.Join(cfg.BuildDir, "compile_commands.json")
	}
	if len(cfg.IgnoreDirs) == 0 {
		cfg.IgnoreDirs = append([]string(nil), defaultIgnoreDirs...)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = append([]string(nil), defaultExtensions...)
	}
}
