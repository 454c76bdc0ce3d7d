// Package git adapts the git client to the backends.Repository contract.
package git

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"vcshist/internal/backends"
	"vcshist/internal/history"
)

const (
	// DefaultCommand is used when no client path is configured
	DefaultCommand = "git"

	marker = ".git"

	// rfc2822Layout is what older clients print for %(creatordate:rfc2822)
	rfc2822Layout = "Mon, 2 Jan 2006 15:04:05 -0700"
)

var (
	versionPattern = regexp.MustCompile(`git version (\d+(?:\.\d+)*)`)

	// isoStrictVersion is the first release with %(creatordate:iso-strict)
	isoStrictVersion = history.MustVersion("2.2")

	dateLayouts = []string{time.RFC3339, rfc2822Layout}
)

// Backend returns the registry descriptor for git
func Backend() backends.Backend {
	return backends.Backend{
		Kind:             backends.KindGit,
		DefaultCommand:   DefaultCommand,
		IsRepositoryRoot: IsRepositoryRoot,
		New: func(root string, opts backends.Options) backends.Repository {
			return NewGitAdapter(root, opts)
		},
	}
}

// IsRepositoryRoot reports whether path holds a .git directory or a
// worktree/submodule .git file
func IsRepositoryRoot(path string) bool {
	return backends.HasMarker(path, marker)
}

// GitAdapter implements backends.Repository for git
type GitAdapter struct {
	client      *backends.Client
	repoRoot    string
	tagsEnabled bool

	gate *history.VersionGate
	tags *backends.TagCache
}

var _ backends.Repository = (*GitAdapter)(nil)

// NewGitAdapter creates a new Git backend adapter
func NewGitAdapter(root string, opts backends.Options) *GitAdapter {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	g := &GitAdapter{
		client:      backends.NewClient(backends.KindGit, opts),
		repoRoot:    root,
		tagsEnabled: opts.TagsEnabled,
	}
	g.gate = history.NewVersionGate(versionPattern, g.probeVersion)
	g.tags = backends.NewTagCache(g.listTags, g.client.Logger)
	return g
}

func (g *GitAdapter) Kind() backends.Kind { return backends.KindGit }
func (g *GitAdapter) Root() string        { return g.repoRoot }

// Capabilities returns the static git facts
func (g *GitAdapter) Capabilities() backends.Capabilities {
	return backends.Capabilities{
		DirectoryHistory: true,
		FileBasedTags:    false,
		Branches:         true,
		TagMatch:         history.MatchRevision,
		DateLayouts:      dateLayouts,
	}
}

func (g *GitAdapter) IsRepositoryRoot(path string) bool { return IsRepositoryRoot(path) }

func (g *GitAdapter) probeVersion(ctx context.Context) (string, bool) {
	res, err := g.client.Run(ctx, g.repoRoot, "--version")
	if err != nil || !res.Success() {
		g.client.Logger.Debug("Git client not usable", "command", g.client.Command)
		return "", false
	}
	return string(res.Stdout), true
}

// IsAvailable runs `git --version` once per adapter
func (g *GitAdapter) IsAvailable(ctx context.Context) bool {
	return g.gate.Working(ctx)
}

// Version returns the detected client version
func (g *GitAdapter) Version(ctx context.Context) string {
	return g.gate.Version(ctx).String()
}

func (g *GitAdapter) dir(path string) string {
	if path == "" {
		return g.repoRoot
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(g.repoRoot, path)
	}
	return path
}

// DetermineBranch returns the checked-out branch. A detached HEAD has none.
func (g *GitAdapter) DetermineBranch(ctx context.Context, path string) (string, bool, error) {
	out, err := g.client.Output(ctx, g.dir(path), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", false, err
	}
	branch := trim(out)
	if branch == "" || branch == "HEAD" {
		return "", false, nil
	}
	return branch, true, nil
}

// DetermineParent returns the origin remote URL. git config exits 1 for an unset key.
func (g *GitAdapter) DetermineParent(ctx context.Context, path string) (string, bool, error) {
	dir := g.dir(path)
	args := []string{"config", "--get", "remote.origin.url"}

	res, err := g.client.Run(ctx, dir, args...)
	if err != nil {
		return "", false, err
	}
	if res.ExitCode == 1 && res.StderrString() == "" {
		return "", false, nil
	}
	if !res.Success() {
		return "", false, backends.RetrievalError(g.client.Cmd(dir, args...), res)
	}
	if url := res.StdoutString(); url != "" {
		return url, true, nil
	}
	return "", false, nil
}

func (g *GitAdapter) HasHistoryForDirectories() bool { return true }
func (g *GitAdapter) HasFileBasedTags() bool         { return false }

// FileHasHistory reports whether git tracks the file
func (g *GitAdapter) FileHasHistory(ctx context.Context, file string) bool {
	dir, base, err := backends.ResolveFile(g.repoRoot, file)
	if err != nil {
		g.client.Logger.Warn("Failed to resolve file", "file", file, "error", err.Error())
		return false
	}

	// -z prints names verbatim instead of C-quoting non-ASCII bytes
	res, err := g.client.Run(ctx, dir, "ls-files", "-z", "--", base)
	if err != nil {
		g.client.Logger.Warn("Failed to check file", "file", file, "error", err.Error())
		return false
	}
	if !res.Success() {
		g.client.Logger.Warn("Failed to check file", "file", file, "stderr", res.StderrString())
		return false
	}
	for _, name := range strings.Split(string(res.Stdout), "\x00") {
		if name == base {
			return true
		}
	}
	return false
}

// FileHasAnnotation is the same check as FileHasHistory
func (g *GitAdapter) FileHasAnnotation(ctx context.Context, file string) bool {
	return g.FileHasHistory(ctx, file)
}

// FileContent returns the blob of dir/base at rev, or at HEAD
func (g *GitAdapter) FileContent(ctx context.Context, dir, base, rev string) ([]byte, bool) {
	if rev == "" {
		rev = "HEAD"
	}
	dir = g.dir(dir)

	out, err := g.client.Output(ctx, dir, "show", rev+":./"+base)
	if err != nil {
		g.client.Logger.Error("Failed to get file content",
			"dir", dir,
			"file", base,
			"revision", rev,
			"error", err.Error(),
		)
		return nil, false
	}
	return out, true
}

// Update fast-forwards the working copy from its upstream
func (g *GitAdapter) Update(ctx context.Context) error {
	_, err := g.client.Output(ctx, g.repoRoot, "pull", "--ff-only")
	if err != nil {
		return err
	}
	g.client.Logger.Info("Repository updated", "repoRoot", g.repoRoot)
	return nil
}

func (g *GitAdapter) BuildTagList(ctx context.Context, dir string) {
	g.tags.Get(ctx, g.dir(dir))
}

func (g *GitAdapter) RebuildTagList(ctx context.Context, dir string) {
	g.tags.Rebuild(ctx, g.dir(dir))
}

func (g *GitAdapter) Tags(ctx context.Context) *history.TagList {
	return g.tags.Get(ctx, g.repoRoot)
}
