package backends

import (
	"context"
	"log/slog"

	"vcshist/internal/history"
	"vcshist/internal/runner"
)

// Kind uniquely identifies a backend type
type Kind string

const (
	// KindBitKeeper represents the BitKeeper backend
	KindBitKeeper Kind = "bitkeeper"
	// KindGit represents the Git backend
	KindGit Kind = "git"
)

// Capabilities are the static facts of a backend kind. They never require I/O.
type Capabilities struct {
	// DirectoryHistory is true when the backend can log a directory as a whole
	DirectoryHistory bool `json:"directoryHistory"`

	// FileBasedTags is true when tags attach to changesets and must be listed
	// up front, then matched against each file history
	FileBasedTags bool `json:"fileBasedTags"`

	// Branches is true when the backend has a branch concept
	Branches bool `json:"branches"`

	// TagMatch selects how tags are placed on file histories
	TagMatch history.TagMatch `json:"tagMatch"`

	// DateLayouts are the time layouts the backend's output uses
	DateLayouts []string `json:"dateLayouts"`
}

// Repository is the uniform retrieval contract every backend adapter implements.
// One Repository is bound to one repository root and may be used concurrently.
//
// Optional results are returned as a value plus a found flag. An absent
// revision argument ("") means the current revision.
type Repository interface {
	// Kind returns the backend kind
	Kind() Kind

	// Root returns the repository root directory
	Root() string

	// Capabilities returns the static backend facts
	Capabilities() Capabilities

	// IsRepositoryRoot reports whether path holds this backend's marker.
	// It never runs the client.
	IsRepositoryRoot(path string) bool

	// IsAvailable probes the client once and memoizes the answer
	IsAvailable(ctx context.Context) bool

	// DetermineBranch returns the current branch of path, if the backend has branches
	DetermineBranch(ctx context.Context, path string) (string, bool, error)

	// DetermineParent returns the upstream repository, if one is configured
	DetermineParent(ctx context.Context, path string) (string, bool, error)

	HasHistoryForDirectories() bool
	HasFileBasedTags() bool

	// FileHasHistory reports whether file is tracked. Failures are logged and yield false.
	FileHasHistory(ctx context.Context, file string) bool

	// History returns the revisions of file newer than since (exclusive), newest first
	History(ctx context.Context, file, since string) (*history.History, error)

	// FileContent returns the bytes of dir/base at rev. Failures are logged and yield false.
	FileContent(ctx context.Context, dir, base, rev string) ([]byte, bool)

	FileHasAnnotation(ctx context.Context, file string) bool

	// Annotate attributes each line of file at rev
	Annotate(ctx context.Context, file, rev string) (*history.Annotation, error)

	// BuildTagList fills the cached tag list if it has not been built
	BuildTagList(ctx context.Context, dir string)

	// RebuildTagList replaces the cached tag list unconditionally
	RebuildTagList(ctx context.Context, dir string)

	// Tags returns the cached tag list, building it on first use
	Tags(ctx context.Context) *history.TagList

	// Update refreshes the working copy from its parent
	Update(ctx context.Context) error
}

// Options carries the collaborators a backend adapter is constructed with.
type Options struct {
	// Command is the client executable; empty selects the backend default
	Command string

	Runner runner.Runner
	Logger *slog.Logger

	// TagsEnabled turns on tag annotation of histories
	TagsEnabled bool
}

// Backend describes one registered backend kind.
type Backend struct {
	Kind Kind

	// DefaultCommand is used when Options.Command is empty
	DefaultCommand string

	// IsRepositoryRoot is the filesystem probe used during discovery
	IsRepositoryRoot func(path string) bool

	// New constructs an adapter bound to root
	New func(root string, opts Options) Repository
}
