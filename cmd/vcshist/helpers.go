package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vcshist/internal/backends"
	"vcshist/internal/backends/builtin"
	"vcshist/internal/config"
	"vcshist/internal/errors"
	"vcshist/internal/runner"
	"vcshist/internal/slogutil"
	"vcshist/internal/storage"
)

// cliEnv is the state shared by a single command invocation
type cliEnv struct {
	root     string
	cfg      *config.Config
	factory  *slogutil.LoggerFactory
	logger   *slog.Logger
	registry *backends.Registry
}

// mustSetup resolves the state root, loads configuration and builds the
// backend registry. Precedence for the log level: -v/-q > config > info.
func mustSetup(cmd *cobra.Command) *cliEnv {
	root := mustGetRoot()

	var cliLevel *slog.Level
	flags := cmd.Flags()
	if flags.Changed("verbose") || flags.Changed("quiet") {
		level := slogutil.LevelFromVerbosity(verbosity, quiet)
		cliLevel = &level
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		cfg = config.DefaultConfig()
	}

	factory := slogutil.NewLoggerFactory(root, cfg, os.Stderr, cliLevel)
	logger := factory.ConsoleLogger()

	timeout := time.Duration(cfg.History.TimeoutMs) * time.Millisecond
	execRunner := runner.NewExecRunner(timeout, logger)

	return &cliEnv{
		root:     root,
		cfg:      cfg,
		factory:  factory,
		logger:   logger,
		registry: builtin.NewRegistry(cfg, execRunner, logger),
	}
}

// mustGetRoot returns the --root directory or the working directory.
func mustGetRoot() string {
	root := rootFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			exitWithError(err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		exitWithError(err)
	}
	return abs
}

// mustOpenRepository opens the repository containing path.
func (e *cliEnv) mustOpenRepository(path string) backends.Repository {
	abs, err := filepath.Abs(path)
	if err != nil {
		exitWithError(err)
	}
	root, b, ok := e.registry.FindRoot(abs)
	if !ok {
		exitWithError(errors.New(errors.NotFound, "No repository found", nil).WithDetails(map[string]interface{}{
			"path": abs,
		}))
	}
	repo, err := e.registry.OpenKind(b.Kind, root)
	if err != nil {
		exitWithError(err)
	}
	return repo
}

// newContext returns a context cancelled on interrupt.
// mustOpenCache opens the history cache written by `vcshist index`.
// The returned func closes the database.
func (e *cliEnv) mustOpenCache() (*storage.Cache, func()) {
	db, err := storage.Open(e.root, e.logger)
	if err != nil {
		exitWithError(err)
	}
	return storage.NewCache(db, e.cfg.Indexing.Compress), func() { _ = db.Close() }
}

func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// printResponse writes resp to stdout in the --format format.
func printResponse(resp interface{}) {
	output, err := FormatResponse(resp, OutputFormat(formatFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// exitWithError prints err, with any suggested fixes, and exits.
func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, fix := range errors.GetSuggestedFixes(errors.CodeOf(err)) {
		switch {
		case fix.Command != "":
			fmt.Fprintf(os.Stderr, "  hint: %s (%s)\n", fix.Description, fix.Command)
		case fix.Description != "":
			fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
		}
	}
	os.Exit(1)
}
