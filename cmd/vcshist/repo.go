package main

import (
	"github.com/spf13/cobra"

	"vcshist/internal/errors"
)

var (
	tagsRebuild bool
	tagsCached  bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags [PATH]",
	Short: "List the tags of a repository",
	Long: `List every tagged revision of the repository containing PATH
(default: the working directory). With --cached, the list stored by the
last index run is shown and no client is invoked.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runTags,
}

var parentCmd = &cobra.Command{
	Use:   "parent [PATH]",
	Short: "Show the repository this one pulls from",
	Args:  cobra.MaximumNArgs(1),
	Run:   runParent,
}

var branchCmd = &cobra.Command{
	Use:   "branch [PATH]",
	Short: "Show the checked-out branch",
	Args:  cobra.MaximumNArgs(1),
	Run:   runBranch,
}

var updateCmd = &cobra.Command{
	Use:   "update [PATH]",
	Short: "Pull upstream changes into the repository",
	Long: `Bring the repository containing PATH up to date with its parent.
Backends that cannot update report an unsupported-operation error.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runUpdate,
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsRebuild, "rebuild", false, "Rebuild the tag list even if one was already built")
	tagsCmd.Flags().BoolVar(&tagsCached, "cached", false, "Read the tag list stored by `vcshist index`")
	tagsCmd.MarkFlagsMutuallyExclusive("rebuild", "cached")

	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(parentCmd)
	rootCmd.AddCommand(branchCmd)
	rootCmd.AddCommand(updateCmd)
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func runTags(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(pathArg(args))
	if tagsCached {
		cache, closeCache := env.mustOpenCache()
		defer closeCache()

		tags, ok, err := cache.GetTags(ctx, repo.Root())
		if err != nil {
			exitWithError(err)
		}
		if !ok {
			exitWithError(errors.New(errors.NotFound, "No cached tags; run `vcshist index` first", nil).WithDetails(map[string]interface{}{
				"root": repo.Root(),
			}))
		}
		printResponse(&TagsResponseCLI{
			Root:    repo.Root(),
			Backend: string(repo.Kind()),
			Cached:  true,
			Tags:    tags.Entries(),
		})
		return
	}

	if tagsRebuild {
		repo.RebuildTagList(ctx, repo.Root())
	} else {
		repo.BuildTagList(ctx, repo.Root())
	}

	printResponse(&TagsResponseCLI{
		Root:    repo.Root(),
		Backend: string(repo.Kind()),
		Tags:    repo.Tags(ctx).Entries(),
	})
}

func runParent(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(pathArg(args))
	parent, ok, err := repo.DetermineParent(ctx, repo.Root())
	if err != nil {
		exitWithError(err)
	}

	printResponse(&RepositoryInfoCLI{
		Root:    repo.Root(),
		Backend: string(repo.Kind()),
		Field:   "parent",
		Value:   parent,
		Present: ok,
	})
}

func runBranch(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(pathArg(args))
	branch, ok, err := repo.DetermineBranch(ctx, repo.Root())
	if err != nil {
		exitWithError(err)
	}

	printResponse(&RepositoryInfoCLI{
		Root:    repo.Root(),
		Backend: string(repo.Kind()),
		Field:   "branch",
		Value:   branch,
		Present: ok,
	})
}

func runUpdate(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(pathArg(args))
	if err := repo.Update(ctx); err != nil {
		exitWithError(err)
	}

	printResponse(&UpdateResponseCLI{
		Root:    repo.Root(),
		Backend: string(repo.Kind()),
		Updated: true,
	})
}
