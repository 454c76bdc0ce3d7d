package main

import (
	"github.com/spf13/cobra"

	"vcshist/internal/indexer"
	"vcshist/internal/storage"
)

var (
	indexFull    bool
	indexWorkers int
	runsLimit    int
)

var indexCmd = &cobra.Command{
	Use:   "index [DIR]",
	Short: "Fetch and cache file histories",
	Long: `Discover repositories under DIR (default: --root), then fetch the history
of every tracked file into .vcshist/history.db. Later runs only fetch
revisions newer than the cached ones unless --full is given.

A file whose history cannot be retrieved is recorded and the run continues.
Each run is logged to .vcshist/logs/index.log.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runIndex,
}

var indexRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent index runs",
	Args:  cobra.NoArgs,
	Run:   runIndexRuns,
}

func init() {
	indexCmd.Flags().BoolVar(&indexFull, "full", false, "Refetch every history instead of extending cached ones")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Concurrent history fetches (default: indexing.workers)")
	indexRunsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Maximum runs to list")

	indexCmd.AddCommand(indexRunsCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	dir := env.root
	if len(args) == 1 {
		dir = args[0]
	}

	// The run logger also writes .vcshist/logs/index.log.
	logger := env.factory.IndexLogger()
	env.logger = logger

	found, err := env.discover(ctx, dir)
	if err != nil {
		exitWithError(err)
	}

	db, err := storage.Open(env.root, logger)
	if err != nil {
		exitWithError(err)
	}
	defer db.Close()

	workers := env.cfg.Indexing.Workers
	if indexWorkers > 0 {
		workers = indexWorkers
	}

	runs := storage.NewRunStore(db)
	ix := indexer.New(env.registry, storage.NewCache(db, env.cfg.Indexing.Compress), runs,
		indexer.Options{Workers: workers, Full: indexFull}, logger)

	summary, runErr := ix.Run(ctx, dir, found.Repositories)
	if summary == nil {
		exitWithError(runErr)
	}

	resp := &IndexResponseCLI{Root: dir, Repositories: found.Repositories, Summary: summary}
	if summary.Failures > 0 {
		failures, err := runs.Failures(ctx, summary.RunID)
		if err != nil {
			logger.Warn("Failed to load run failures", "error", err.Error())
		}
		resp.Failures = failures
	}
	printResponse(resp)

	if runErr != nil {
		exitWithError(runErr)
	}
}

func runIndexRuns(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	db, err := storage.Open(env.root, env.logger)
	if err != nil {
		exitWithError(err)
	}
	defer db.Close()

	list, err := storage.NewRunStore(db).ListRuns(ctx, runsLimit)
	if err != nil {
		exitWithError(err)
	}
	stats, err := storage.NewCache(db, env.cfg.Indexing.Compress).Stats(ctx)
	if err != nil {
		exitWithError(err)
	}
	printResponse(&RunsResponseCLI{Runs: list, Stats: stats})
}
