package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/gophersatwork/ldfcache"
)

// Exit code signalled when a fresh build ran and the cache was just
// written: the caller must rerun the build to consume it. Distinct from 0
// (cache replayed, proceed to linking) and 1 (error).
const exitRerunRequired = 10

func main() {
	initLogger()

	app := &cli.Command{
		Name:  "ldfcache",
		Usage: "Build cache and build-order reconstruction for expensive dependency resolution",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "cache",
				Usage: "cache root directory",
				Value: ".ldfcache",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			fingerprintCommand(),
			orderCommand(),
			statsCommand(),
			pruneCommand(),
			clearCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger sets up apex/log with a custom handler and a log level from
// the LDFCACHE_LOG env variable.
func initLogger() {
	level := strings.ToUpper(os.Getenv("LDFCACHE_LOG"))
	if level == "" {
		level = "WARN"
	}
	log.SetHandler(&stderrHandler{})
	log.SetLevelFromString(level)
}

// stderrHandler formats log messages and writes them to stderr.
type stderrHandler struct{}

// HandleLog implements the log.Handler interface.
func (h *stderrHandler) HandleLog(e *log.Entry) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(os.Stderr, "%s %.1s %s\n", timestamp, strings.ToUpper(e.Level.String()), e.Message)
	return nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Orchestrate one build: replay the cache on a hit, rebuild and cache on a miss",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "build target (environment) name", Required: true},
			&cli.StringFlag{Name: "config", Usage: "YAML config file"},
			&cli.StringFlag{Name: "project", Usage: "project directory", Value: "."},
			&cli.StringFlag{Name: "build-dir", Usage: "build output directory"},
			&cli.StringFlag{Name: "build-cmd", Usage: "full build command (space separated argv)"},
			&cli.DurationFlag{Name: "timeout", Usage: "full build timeout (0 = none)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			cache, err := ldfcache.Open(cmd.String("cache"))
			if err != nil {
				return err
			}

			outcome, err := cache.Run(ctx, cmd.String("target"), cfg)
			if err != nil {
				return err
			}

			if outcome.Replayed {
				fmt.Printf("cache replayed for %s (%d artifacts restored), proceed to linking\n",
					outcome.Target, outcome.Restored)
				return nil
			}

			return cli.Exit(fmt.Sprintf("cache written for %s, rerun the build to consume it",
				outcome.Target), exitRerunRequired)
		},
	}
}

func fingerprintCommand() *cli.Command {
	return &cli.Command{
		Name:  "fingerprint",
		Usage: "Compute and print the project fingerprint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Usage: "project directory", Value: "."},
			&cli.BoolFlag{Name: "verbose", Usage: "dump per-file hashes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := ldfcache.DefaultConfig(cmd.String("project"))

			fp := &ldfcache.Fingerprinter{
				IgnoreDirs: cfg.IgnoreDirs,
				Extensions: cfg.Extensions,
			}
			fprint, err := fp.Fingerprint(cfg.ProjectDir)
			if err != nil {
				return err
			}

			fmt.Printf("%s  (%d files)\n", fprint.AggregateHash, len(fprint.Files))
			if cmd.Bool("verbose") {
				fmt.Print(spew.Sdump(fprint.Files))
			}
			return nil
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "Reconstruct the compile/link order from a compile-commands export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "build target (environment) name", Required: true},
			&cli.StringFlag{Name: "compile-commands", Usage: "compile_commands.json path", Value: "compile_commands.json"},
			&cli.StringFlag{Name: "order-dir", Usage: "directory to write order files to", Value: "."},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fs := afero.NewOsFs()

			records, err := ldfcache.LoadCompileCommands(fs, cmd.String("compile-commands"))
			if err != nil {
				return err
			}
			ledger, err := ldfcache.BuildLedger(records)
			if err != nil {
				return err
			}
			order, err := ldfcache.Resolve(ledger)
			if err != nil {
				return err
			}

			buildOrderPath, linkOrderPath, err := order.WriteOrderFiles(fs, cmd.String("order-dir"), cmd.String("target"))
			if err != nil {
				return err
			}

			fmt.Printf("%d compile records (%d dropped)\n", len(order.CompileOrder), ledger.Dropped)
			fmt.Printf("wrote %s\n", buildOrderPath)
			fmt.Printf("wrote %s\n", linkOrderPath)
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print cache statistics",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cache, err := ldfcache.Open(cmd.String("cache"))
			if err != nil {
				return err
			}

			stats, err := cache.Stats()
			if err != nil {
				return err
			}

			fmt.Printf("targets: %d\n", stats.Targets)
			fmt.Printf("size:    %s\n", humanize.Bytes(uint64(stats.TotalSize)))
			if stats.Targets > 0 {
				fmt.Printf("oldest:  %s ago\n", stats.OldestEntry.Round(time.Second))
				fmt.Printf("newest:  %s ago\n", stats.NewestEntry.Round(time.Second))
			}

			entries, err := cache.Entries()
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Printf("  %s: %d artifacts, %s, created %s\n",
					entry.Target, entry.ArtifactCount,
					humanize.Bytes(uint64(entry.Size)),
					entry.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Remove cache entries older than a given age",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "older-than", Usage: "minimum age to prune", Value: 30 * 24 * time.Hour},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cache, err := ldfcache.Open(cmd.String("cache"))
			if err != nil {
				return err
			}

			removed, err := cache.Prune(cmd.Duration("older-than"))
			if err != nil {
				return err
			}

			fmt.Printf("pruned %d target(s)\n", removed)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove cache entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "remove only this build target"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cache, err := ldfcache.Open(cmd.String("cache"))
			if err != nil {
				return err
			}

			if target := cmd.String("target"); target != "" {
				return cache.Delete(target)
			}
			return cache.Clear()
		},
	}
}

// loadConfig assembles the run config from the optional YAML file plus
// flag overrides.
func loadConfig(cmd *cli.Command) (*ldfcache.Config, error) {
	var cfg *ldfcache.Config
	var err error

	if path := cmd.String("config"); path != "" {
		cfg, err = ldfcache.LoadConfig(afero.NewOsFs(), path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = ldfcache.DefaultConfig(cmd.String("project"))
	}

	if dir := cmd.String("build-dir"); dir != "" {
		cfg.BuildDir = dir
	}
	if argv := cmd.String("build-cmd"); argv != "" {
		cfg.BuildCommand = strings.Fields(argv)
	}
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}

	return cfg, nil
}
