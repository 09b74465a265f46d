// Command plaso is the extraction engine's command-line entry point
// (spec.md §6): subcommands extract, merge, and info, with exit codes
// 0 success, 1 user error, 2 partial success with warnings, 64 fatal
// engine error. *Grounded on* standardbeagle-lci's cmd/lci/main.go
// (urfave/cli App with a flat Commands list and a shared config-load
// helper), narrowed from a dozen search/index subcommands down to the
// three this engine's CLI surface names.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/log2timeline/plaso-sub000/internal/app"
	"github.com/log2timeline/plaso-sub000/internal/config"
	"github.com/log2timeline/plaso-sub000/internal/store"
	"github.com/log2timeline/plaso-sub000/pkg/pathspec"
)

const (
	exitSuccess        = 0
	exitUserError      = 1
	exitPartialSuccess = 2
	exitFatalError     = 64
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	cliApp := &cli.App{
		Name:  "plaso",
		Usage: "forensic timeline extraction engine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML configuration file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace|debug|info|warn|error"},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("plaso: invalid log level %q", c.String("log-level")), exitUserError)
			}
			logger.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			extractCommand(logger),
			mergeCommand(logger),
			infoCommand(logger),
		},
	}

	if err := cliApp.Run(args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, exitErr.Error())
			return exitErr.ExitCode()
		}
		logger.WithError(err).Error("plaso: fatal error")
		return exitFatalError
	}
	return exitSuccess
}

func extractCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "walk one or more sources and build a session store of events",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "source root to walk (repeatable)"},
			&cli.StringFlag{Name: "work-dir", Usage: "scratch directory for per-task stores"},
			&cli.StringFlag{Name: "store", Usage: "output session store path"},
			&cli.IntFlag{Name: "workers", Usage: "worker pool size"},
			&cli.BoolFlag{Name: "vss", Usage: "descend into volume shadow snapshots"},
			&cli.StringFlag{Name: "parser-filter", Usage: "parser include/exclude expression, e.g. win7,!winreg"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "address to serve /metrics and /health on, e.g. :9090"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return cli.Exit(err.Error(), exitUserError)
			}
			if sources := c.StringSlice("source"); len(sources) > 0 {
				cfg.Sources = sources
			}
			if len(cfg.Sources) == 0 {
				return cli.Exit("plaso extract: at least one --source is required", exitUserError)
			}
			if v := c.String("work-dir"); v != "" {
				cfg.WorkDir = v
			}
			if v := c.String("store"); v != "" {
				cfg.StorePath = v
			}
			if v := c.Int("workers"); v > 0 {
				cfg.WorkerCount = v
			}
			if c.Bool("vss") {
				cfg.EnableVSS = true
			}
			if v := c.String("parser-filter"); v != "" {
				cfg.ParserFilter = v
			}
			if v := c.String("metrics-addr"); v != "" {
				cfg.MetricsAddr = v
			}
			if err := config.Validate(cfg); err != nil {
				return cli.Exit(err.Error(), exitUserError)
			}

			appCfg := app.Config{
				WorkDir:             cfg.WorkDir,
				StorePath:           cfg.StorePath,
				StoreCodec:          cfg.ToStoreCodec(),
				WorkerCount:         cfg.WorkerCount,
				IncludePatterns:     cfg.IncludePatterns,
				ExcludePatterns:     cfg.ExcludePatterns,
				ParserFilter:        cfg.ParserFilter,
				EnableVSS:           cfg.EnableVSS,
				CollectorWatermarks: cfg.ToCollectorConfig(),
				TaskManager:         cfg.ToTaskManagerConfig(),
				WorkerConfig:        cfg.ToWorkerConfig(),
				MetricsAddr:         cfg.MetricsAddr,
			}

			commandLine := "plaso extract " + strings.Join(cfg.Sources, " ")
			session, err := app.New(appCfg, cfg.Sources[0], commandLine, logger)
			if err != nil {
				return cli.Exit(err.Error(), exitFatalError)
			}

			var roots []*pathspec.Spec
			for _, src := range cfg.Sources {
				roots = append(roots, pathspec.New(pathspec.TypeOS, map[string]string{"location": src}, nil))
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Warn("plaso extract: received shutdown signal, stopping")
				cancel()
			}()

			counters, err := session.Run(ctx, roots)
			if err != nil {
				return cli.Exit(fmt.Sprintf("plaso extract: %v", err), exitFatalError)
			}

			logger.WithFields(logrus.Fields{
				"events_produced":   counters.EventsProduced,
				"warnings_produced": counters.WarningsProduced,
				"vss_dedup_dropped": counters.VSSDedupDropped,
			}).Info("plaso extract: session complete")

			if counters.WarningsProduced > 0 {
				return cli.Exit("", exitPartialSuccess)
			}
			return nil
		},
	}
}

func mergeCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "merge leftover per-task stores from an interrupted session into the session store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "work-dir", Usage: "directory containing leftover *.plaso-task files", Required: true},
			&cli.StringFlag{Name: "store", Usage: "session store path to merge into", Required: true},
			&cli.StringFlag{Name: "store-codec", Value: "zstd", Usage: "raw|zstd|snappy|lz4"},
		},
		Action: func(c *cli.Context) error {
			workDir := c.String("work-dir")
			entries, err := os.ReadDir(workDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("plaso merge: read %s: %v", workDir, err), exitUserError)
			}

			codec, err := config.ParseCodec(c.String("store-codec"))
			if err != nil {
				return cli.Exit(err.Error(), exitUserError)
			}

			sessionStore, err := store.NewSessionStore(c.String("store"), [16]byte{}, codec)
			if err != nil {
				return cli.Exit(fmt.Sprintf("plaso merge: %v", err), exitFatalError)
			}
			defer sessionStore.Close()

			merged, discarded := 0, 0
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".plaso-task") {
					continue
				}
				path := workDir + "/" + entry.Name()
				reader, err := store.OpenReader(path)
				if err != nil {
					// Task store on disk whose write did not complete: discard
					// on recovery rather than merge a torn container (spec.md
					// §4.9's "On foreman crash, task stores ... are discarded").
					logger.WithError(err).WithField("path", path).Warn("plaso merge: discarding unreadable task store")
					discarded++
					continue
				}
				if err := sessionStore.MergeTask(entry.Name(), "", reader.EventData(), reader.Events(), reader.Warnings()); err != nil {
					logger.WithError(err).WithField("path", path).Warn("plaso merge: failed to merge task store")
					discarded++
					continue
				}
				merged++
			}

			if err := sessionStore.Sync(); err != nil {
				return cli.Exit(fmt.Sprintf("plaso merge: %v", err), exitFatalError)
			}
			logger.WithFields(logrus.Fields{"merged": merged, "discarded": discarded}).Info("plaso merge: recovery complete")
			if discarded > 0 {
				return cli.Exit("", exitPartialSuccess)
			}
			return nil
		},
	}
}

func infoCommand(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "summarize a session store's contents",
		ArgsUsage: "<store-path>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: plaso info <store-path>", exitUserError)
			}
			path := c.Args().First()

			reader, err := store.OpenReader(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("plaso info: %v", err), exitUserError)
			}

			byDataType := make(map[string]int)
			for _, d := range reader.EventData() {
				byDataType[d.DataType]++
			}

			fmt.Printf("format_version: %d\n", reader.Header().FormatVersion)
			fmt.Printf("events: %d\n", len(reader.Events()))
			fmt.Printf("event_data: %d\n", len(reader.EventData()))
			fmt.Printf("warnings: %d\n", len(reader.Warnings()))
			for dataType, count := range byDataType {
				fmt.Printf("  %s: %d\n", dataType, count)
			}
			return nil
		},
	}
}

