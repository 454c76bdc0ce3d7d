package main

import (
	"context"

	"github.com/spf13/cobra"

	"vcshist/internal/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [DIR]",
	Short: "Find repositories under a directory",
	Long: `Walk DIR (default: --root) and report every directory that a registered
backend recognises as a repository root. Ignore patterns come from
discovery.ignore and DIR/.gitignore.

Examples:
  vcshist discover ~/src
  vcshist discover --format=human`,
	Args: cobra.MaximumNArgs(1),
	Run:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	dir := env.root
	if len(args) == 1 {
		dir = args[0]
	}

	res, err := env.discover(ctx, dir)
	if err != nil {
		exitWithError(err)
	}

	resp := &DiscoverResponseCLI{Root: dir, Repositories: res.Repositories}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	printResponse(resp)
}

func (e *cliEnv) discover(ctx context.Context, dir string) (*discovery.Result, error) {
	walker, err := discovery.NewWalker(dir, e.registry, discovery.Options{
		MaxDepth: e.cfg.Discovery.MaxDepth,
		Ignore:   e.cfg.Discovery.Ignore,
		Nested:   e.cfg.Discovery.Nested,
	}, e.logger)
	if err != nil {
		return nil, err
	}
	return walker.Walk(ctx)
}
