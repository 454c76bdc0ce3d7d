package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vcshist/internal/errors"
	"vcshist/internal/paths"
)

var (
	historySince  string
	historyCached bool
	annotateRev   string
	catRev        string
)

var historyCmd = &cobra.Command{
	Use:   "history FILE",
	Short: "Show the revision history of a file",
	Long: `List the revisions that changed FILE, newest first, with author, date,
comment, rename source and tags.

Examples:
  vcshist history src/main.c
  vcshist history src/main.c --since=1.40
  vcshist history src/main.c --cached --format=human`,
	Args: cobra.ExactArgs(1),
	Run:  runHistory,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate FILE",
	Short: "Show who last changed each line of a file",
	Long: `Attribute every line of FILE to the revision and author that last changed it.

Examples:
  vcshist annotate src/main.c
  vcshist annotate src/main.c --rev=1.12 --format=human`,
	Args: cobra.ExactArgs(1),
	Run:  runAnnotate,
}

var catCmd = &cobra.Command{
	Use:   "cat FILE",
	Short: "Print a file as of a revision",
	Long: `Write the contents of FILE at a revision to stdout. Without --rev the
latest checked-in revision is printed.`,
	Args: cobra.ExactArgs(1),
	Run:  runCat,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only show revisions newer than this one")
	historyCmd.Flags().BoolVar(&historyCached, "cached", false, "Read the history stored by `vcshist index`")
	annotateCmd.Flags().StringVar(&annotateRev, "rev", "", "Annotate this revision instead of the latest")
	catCmd.Flags().StringVar(&catRev, "rev", "", "Revision to print")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(catCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(args[0])
	rel := mustRelativeFile(repo.Root(), args[0])

	resp := &HistoryResponseCLI{
		File:    rel,
		Root:    repo.Root(),
		Backend: string(repo.Kind()),
		Since:   historySince,
	}

	if historyCached {
		cache, closeCache := env.mustOpenCache()
		defer closeCache()

		cached, ok, err := cache.GetHistory(ctx, repo.Root(), rel)
		if err != nil {
			exitWithError(err)
		}
		if !ok {
			exitWithError(errors.New(errors.NotFound, "No cached history; run `vcshist index` first", nil).WithDetails(map[string]interface{}{
				"file": rel,
			}))
		}
		resp.Cached = true
		resp.Entries = cached.History.Entries
		printResponse(resp)
		return
	}

	h, err := repo.History(ctx, filepath.Join(repo.Root(), rel), historySince)
	if err != nil {
		exitWithError(err)
	}
	resp.Entries = h.Entries
	printResponse(resp)
}

func runAnnotate(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(args[0])
	rel := mustRelativeFile(repo.Root(), args[0])

	a, err := repo.Annotate(ctx, filepath.Join(repo.Root(), rel), annotateRev)
	if err != nil {
		exitWithError(err)
	}

	printResponse(&AnnotateResponseCLI{
		File:     rel,
		Backend:  string(repo.Kind()),
		Revision: annotateRev,
		Authors:  a.Authors(),
		Lines:    a.Lines,
	})
}

func runCat(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	repo := env.mustOpenRepository(args[0])
	abs, err := filepath.Abs(args[0])
	if err != nil {
		exitWithError(err)
	}
	dir, base, err := paths.SplitFile(abs)
	if err != nil {
		exitWithError(err)
	}

	content, ok := repo.FileContent(ctx, dir, base, catRev)
	if !ok {
		exitWithError(errors.New(errors.RetrievalFailed, "Cannot retrieve file contents", nil).WithDetails(map[string]interface{}{
			"file":     abs,
			"revision": catRev,
		}))
	}
	_, _ = os.Stdout.Write(content)
}

// mustRelativeFile returns file relative to root with forward slashes.
func mustRelativeFile(root, file string) string {
	abs, err := filepath.Abs(file)
	if err != nil {
		exitWithError(err)
	}
	rel, err := paths.CanonicalizePath(abs, root)
	if err != nil {
		exitWithError(err)
	}
	return rel
}
