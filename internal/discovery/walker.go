// Package discovery finds version-controlled repositories under a directory
// tree by probing each directory with the registered backends.
package discovery

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"vcshist/internal/backends"
	"vcshist/internal/slogutil"
)

// DefaultIgnorePatterns are never descended into. Repository metadata
// directories are probed from their parent, not walked.
var DefaultIgnorePatterns = []string{
	".git",
	".bk",
	".hg",
	".svn",
	".vcshist",
}

// Found is one discovered repository.
type Found struct {
	Root  string        `json:"root"`
	Kind  backends.Kind `json:"kind"`
	Depth int           `json:"depth"`
}

// WalkError represents an error that occurred during the walk.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result contains the results of a walk.
type Result struct {
	Repositories []Found
	Errors       []WalkError
}

// Options configures the walk.
type Options struct {
	// MaxDepth limits how many directories below the start are probed. 0 means unlimited.
	MaxDepth int
	// Ignore holds extra gitignore-style patterns
	Ignore []string
	// Nested keeps walking inside a discovered repository
	Nested bool
}

// Walker walks a directory tree and reports repository roots.
type Walker struct {
	root          string
	registry      *backends.Registry
	opts          Options
	ignoreMatcher gitignore.IgnoreParser
	logger        *slog.Logger
}

// NewWalker creates a walker rooted at root.
func NewWalker(root string, registry *backends.Registry, opts Options, logger *slog.Logger) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	patterns := make([]string, 0, len(DefaultIgnorePatterns)+len(opts.Ignore))
	patterns = append(patterns, DefaultIgnorePatterns...)
	patterns = append(patterns, opts.Ignore...)
	if lines, err := readIgnoreLines(filepath.Join(abs, ".gitignore")); err == nil {
		patterns = append(patterns, lines...)
	}

	return &Walker{
		root:          abs,
		registry:      registry,
		opts:          opts,
		ignoreMatcher: gitignore.CompileIgnoreLines(patterns...),
		logger:        slogutil.OrDiscard(logger),
	}, nil
}

// readIgnoreLines reads patterns from a .gitignore file.
func readIgnoreLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func depthOf(rel string) int {
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// Walk probes every directory under the root. Unreadable directories are
// recorded in Result.Errors and skipped.
func (w *Walker) Walk(ctx context.Context) (*Result, error) {
	result := &Result{Repositories: []Found{}}

	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Errors = append(result.Errors, WalkError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			result.Errors = append(result.Errors, WalkError{Path: path, Err: err})
			return nil
		}

		depth := depthOf(rel)
		if rel != "." && w.ignoreMatcher.MatchesPath(rel) {
			return filepath.SkipDir
		}
		if w.opts.MaxDepth > 0 && depth > w.opts.MaxDepth {
			return filepath.SkipDir
		}

		b, ok := w.registry.Detect(path)
		if !ok {
			return nil
		}

		w.logger.Debug("Repository found", "root", path, "kind", string(b.Kind))
		result.Repositories = append(result.Repositories, Found{Root: path, Kind: b.Kind, Depth: depth})
		if !w.opts.Nested {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	sort.Slice(result.Repositories, func(i, j int) bool {
		return result.Repositories[i].Root < result.Repositories[j].Root
	})

	w.logger.Info("Discovery complete",
		"root", w.root,
		"repositories", len(result.Repositories),
		"errors", len(result.Errors),
	)
	return result, nil
}
