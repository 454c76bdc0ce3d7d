// Package bitkeeper adapts the BitKeeper `bk` client to the backends.Repository contract.
//
// BitKeeper keeps per-file revisions (deltas) and groups them into changesets.
// Histories are built from file revisions; tags name changesets, so they are
// listed once per repository and placed on file histories by date.
package bitkeeper

import (
	"context"
	"path/filepath"
	"regexp"

	"vcshist/internal/backends"
	"vcshist/internal/history"
)

const (
	// DefaultCommand is used when no client path is configured
	DefaultCommand = "bk"

	// marker is the directory at every BitKeeper repository root
	marker = ".bk"

	// dateLayout matches ":D_: :T: GMT:TZ:" in the dspecs below
	dateLayout = "2006-01-02 15:04:05 GMT-07:00"

	// noParentMessage is printed by `bk parent` when none is configured
	noParentMessage = "This repository has no pull parent."
)

// The dspecs are passed to bk verbatim; bk expands \t and \n itself.
const (
	logDspec    = `D :DPN:\t:REV:\t:D_: :T: GMT:TZ:\t:USER:$if(:RENAME:){\t:DPN|PARENT:}\n$each(:C:){C (:C:)\n}`
	tagDspec    = `D :REV:\t:D_: :T: GMT:TZ:\n$each(:TAGS:){T (:TAGS:)\n}`
	tagDspecOld = `D :REV:\t:D_: :T: GMT:TZ:\n$each(:TAG:){T (:TAG:)\n}`
)

var (
	versionPattern = regexp.MustCompile(`BitKeeper version is .*-(\d+(?:\.\d+)*)`)

	// newDspecVersion is the first release that understands :TAGS:
	newDspecVersion = history.MustVersion("7.3")
)

// Backend returns the registry descriptor for BitKeeper
func Backend() backends.Backend {
	return backends.Backend{
		Kind:             backends.KindBitKeeper,
		DefaultCommand:   DefaultCommand,
		IsRepositoryRoot: IsRepositoryRoot,
		New: func(root string, opts backends.Options) backends.Repository {
			return New(root, opts)
		},
	}
}

// IsRepositoryRoot reports whether path contains a .bk directory
func IsRepositoryRoot(path string) bool {
	return backends.HasMarkerDir(path, marker)
}

// Repository is a BitKeeper repository adapter
type Repository struct {
	client      *backends.Client
	root        string
	tagsEnabled bool

	gate *history.VersionGate
	tags *backends.TagCache
}

var _ backends.Repository = (*Repository)(nil)

// New creates an adapter for the repository at root
func New(root string, opts backends.Options) *Repository {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	r := &Repository{
		client:      backends.NewClient(backends.KindBitKeeper, opts),
		root:        root,
		tagsEnabled: opts.TagsEnabled,
	}
	r.gate = history.NewVersionGate(versionPattern, r.probeVersion)
	r.tags = backends.NewTagCache(r.listTags, r.client.Logger)
	return r
}

func (r *Repository) Kind() backends.Kind { return backends.KindBitKeeper }
func (r *Repository) Root() string        { return r.root }

// CommandPath returns the client executable in use
func (r *Repository) CommandPath() string { return r.client.Command }

func (r *Repository) Capabilities() backends.Capabilities {
	return backends.Capabilities{
		DirectoryHistory: false,
		FileBasedTags:    true,
		Branches:         false,
		TagMatch:         history.MatchDate,
		DateLayouts:      []string{dateLayout},
	}
}

func (r *Repository) IsRepositoryRoot(path string) bool { return IsRepositoryRoot(path) }

func (r *Repository) probeVersion(ctx context.Context) (string, bool) {
	res, err := r.client.Run(ctx, r.root, "--version")
	if err != nil || !res.Success() {
		r.client.Logger.Debug("BitKeeper client not usable", "command", r.client.Command)
		return "", false
	}
	return string(res.Stdout), true
}

// IsAvailable runs `bk --version` once per adapter
func (r *Repository) IsAvailable(ctx context.Context) bool {
	return r.gate.Working(ctx)
}

// Version returns the detected client version
func (r *Repository) Version(ctx context.Context) string {
	return r.gate.Version(ctx).String()
}

// DetermineBranch always reports none: BitKeeper has no branches.
func (r *Repository) DetermineBranch(ctx context.Context, path string) (string, bool, error) {
	return "", false, nil
}

// DetermineParent returns the first pull parent.
func (r *Repository) DetermineParent(ctx context.Context, path string) (string, bool, error) {
	if path == "" {
		path = r.root
	}
	res, err := r.client.Run(ctx, path, "parent", "-1il")
	if err != nil {
		return "", false, err
	}

	out := res.StdoutString()
	if out == noParentMessage || res.StderrString() == noParentMessage {
		return "", false, nil
	}
	if !res.Success() {
		return "", false, backends.RetrievalError(r.client.Cmd(path, "parent", "-1il"), res)
	}
	if out == "" {
		return "", false, nil
	}
	return out, true, nil
}

func (r *Repository) HasHistoryForDirectories() bool { return false }
func (r *Repository) HasFileBasedTags() bool         { return true }

// FileHasHistory asks `bk files` whether the file is under revision control.
func (r *Repository) FileHasHistory(ctx context.Context, file string) bool {
	dir, base, err := backends.ResolveFile(r.root, file)
	if err != nil {
		r.client.Logger.Warn("Failed to resolve file", "file", file, "error", err.Error())
		return false
	}

	res, err := r.client.Run(ctx, dir, "files", base)
	if err != nil {
		r.client.Logger.Warn("Failed to check file", "file", file, "error", err.Error())
		return false
	}
	if !res.Success() {
		r.client.Logger.Warn("Failed to check file", "file", file, "stderr", res.StderrString())
		return false
	}
	return res.StdoutString() == base
}

// History returns the file's deltas newer than since.
func (r *Repository) History(ctx context.Context, file, since string) (*history.History, error) {
	dir, base, err := backends.ResolveFile(r.root, file)
	if err != nil {
		return nil, err
	}

	args := []string{"log"}
	if since != "" {
		args = append(args, "-r"+since+"..")
	}
	args = append(args, "-d"+logDspec, base)

	parser := newHistoryParser(dateLayout)
	if err := r.client.Stream(ctx, dir, parser.Consume, args...); err != nil {
		return nil, err
	}

	h, warnings := parser.Finish()
	for _, w := range warnings {
		r.client.Logger.Warn("Skipped history record",
			"file", file,
			"line", w.Line,
			"reason", w.Reason,
		)
	}

	// bk includes the lower bound of a range
	h.ExcludeRevision(since)

	if r.tagsEnabled {
		h.AssignTags(r.Tags(ctx), history.MatchDate)
	}
	return h, nil
}

// FileContent returns `bk get -p` output for base in dir.
func (r *Repository) FileContent(ctx context.Context, dir, base, rev string) ([]byte, bool) {
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.root, dir)
	}
	args := []string{"get", "-p"}
	if rev != "" {
		args = append(args, "-r"+rev)
	}
	args = append(args, base)

	out, err := r.client.Output(ctx, dir, args...)
	if err != nil {
		r.client.Logger.Error("Failed to get file content",
			"dir", dir,
			"file", base,
			"revision", rev,
			"error", err.Error(),
		)
		return nil, false
	}
	return out, true
}

// FileHasAnnotation is the same check as FileHasHistory
func (r *Repository) FileHasAnnotation(ctx context.Context, file string) bool {
	return r.FileHasHistory(ctx, file)
}

// Annotate runs `bk annotate -aur`, which prints user, revision and text per line.
func (r *Repository) Annotate(ctx context.Context, file, rev string) (*history.Annotation, error) {
	dir, base, err := backends.ResolveFile(r.root, file)
	if err != nil {
		return nil, err
	}

	args := []string{"annotate", "-aur"}
	if rev != "" {
		args = append(args, "-r"+rev)
	}
	args = append(args, base)

	parser := newAnnotationParser(base, rev)
	if err := r.client.Stream(ctx, dir, parser.Consume, args...); err != nil {
		return nil, err
	}
	return parser.Finish(), nil
}

// listTags runs `bk tags` with the dspec the installed client understands.
func (r *Repository) listTags(ctx context.Context, dir string) (*history.TagList, error) {
	if dir == "" {
		dir = r.root
	}
	dspec := r.gate.Choose(ctx, newDspecVersion, tagDspec, tagDspecOld)

	parser := newTagParser(dateLayout)
	if err := r.client.Stream(ctx, dir, parser.Consume, "tags", "-d"+dspec); err != nil {
		return nil, err
	}

	tags, warnings := parser.Finish()
	for _, w := range warnings {
		r.client.Logger.Warn("Skipped tag record", "line", w.Line, "reason", w.Reason)
	}
	return tags, nil
}

func (r *Repository) BuildTagList(ctx context.Context, dir string) {
	r.tags.Get(ctx, dir)
}

func (r *Repository) RebuildTagList(ctx context.Context, dir string) {
	r.tags.Rebuild(ctx, dir)
}

func (r *Repository) Tags(ctx context.Context) *history.TagList {
	return r.tags.Get(ctx, r.root)
}

// Update is not supported: pulling is left to the repository owner.
func (r *Repository) Update(ctx context.Context) error {
	return backends.Unsupported(backends.KindBitKeeper, "update")
}

