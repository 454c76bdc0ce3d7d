// Package indexer fetches file histories for discovered repositories and
// keeps the local history cache current.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vcshist/internal/backends"
	"vcshist/internal/discovery"
	"vcshist/internal/errors"
	"vcshist/internal/history"
	"vcshist/internal/slogutil"
	"vcshist/internal/storage"
)

// Options controls an index run
type Options struct {
	// Workers bounds concurrent history fetches; <= 0 means one
	Workers int
	// Full ignores cached revisions and refetches every history
	Full bool
}

// Summary reports the outcome of an index run
type Summary struct {
	RunID        string            `json:"runId"`
	Status       storage.RunStatus `json:"status"`
	Repositories int               `json:"repositories"`
	Skipped      int               `json:"skipped"`
	Files        int               `json:"files"`
	Unchanged    int               `json:"unchanged"`
	Pruned       int               `json:"pruned"`
	NewEntries   int               `json:"newEntries"`
	Failures     int               `json:"failures"`
	Duration     time.Duration     `json:"duration"`
}

// Indexer walks repositories and stores their file histories
type Indexer struct {
	registry *backends.Registry
	cache    *storage.Cache
	runs     *storage.RunStore
	opts     Options
	logger   *slog.Logger
}

// New creates an indexer
func New(registry *backends.Registry, cache *storage.Cache, runs *storage.RunStore, opts Options, logger *slog.Logger) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Indexer{
		registry: registry,
		cache:    cache,
		runs:     runs,
		opts:     opts,
		logger:   slogutil.OrDiscard(logger),
	}
}

type fileJob struct {
	repo backends.Repository
	tags *history.TagList
	file string
	// cached is set when the file had a stored history before this run
	cached bool
}

// tally accumulates per-file outcomes from the workers
type tally struct {
	mu         sync.Mutex
	files      int
	unchanged  int
	pruned     int
	newEntries int
	failures   int
}

// Run indexes every repository in found. A file whose history cannot be
// retrieved is recorded as a failure and does not stop the run.
func (ix *Indexer) Run(ctx context.Context, root string, found []discovery.Found) (*Summary, error) {
	start := time.Now()

	run, err := ix.runs.StartRun(ctx, root)
	if err != nil {
		return nil, err
	}
	logger := ix.logger.With("run", run.ID)
	logger.Info("Index run started", "root", root, "repositories", len(found), "workers", ix.opts.Workers)

	summary := &Summary{RunID: run.ID}
	var jobs []fileJob
	for _, f := range found {
		repoJobs, pruned, ok := ix.prepare(ctx, f, logger)
		if !ok {
			summary.Skipped++
			continue
		}
		summary.Repositories++
		summary.Pruned += pruned
		jobs = append(jobs, repoJobs...)
	}

	t := &tally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return ix.indexFile(gctx, run.ID, job, t, logger)
		})
	}
	runErr := g.Wait()

	summary.Files = t.files
	summary.Unchanged = t.unchanged
	summary.Pruned += t.pruned
	summary.NewEntries = t.newEntries
	summary.Failures = t.failures
	summary.Duration = time.Since(start)

	switch {
	case ctx.Err() != nil:
		summary.Status = storage.RunCancelled
	case runErr != nil:
		summary.Status = storage.RunFailed
	default:
		summary.Status = storage.RunCompleted
	}

	totals := storage.RunTotals{
		Repositories: summary.Repositories,
		Files:        summary.Files,
		Entries:      summary.NewEntries,
		Failures:     summary.Failures,
	}
	if err := ix.runs.FinishRun(context.WithoutCancel(ctx), run.ID, summary.Status, totals); err != nil {
		logger.Error("Failed to record run result", "error", err.Error())
	}

	logger.Info("Index run finished",
		"status", string(summary.Status),
		"files", summary.Files,
		"new_entries", summary.NewEntries,
		"pruned", summary.Pruned,
		"failures", summary.Failures,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	if runErr != nil {
		return summary, runErr
	}
	return summary, ctx.Err()
}

// prepare opens a repository, builds its tag list and lists its files.
// Cached histories of files that no longer exist are dropped; the count is
// returned with the jobs.
func (ix *Indexer) prepare(ctx context.Context, f discovery.Found, logger *slog.Logger) ([]fileJob, int, bool) {
	repo, err := ix.registry.OpenKind(f.Kind, f.Root)
	if err != nil {
		logger.Warn("Skipping repository", "root", f.Root, "error", err.Error())
		return nil, 0, false
	}
	if !repo.IsAvailable(ctx) {
		logger.Warn("Skipping repository, client not available", "root", f.Root, "backend", string(f.Kind))
		return nil, 0, false
	}

	repo.BuildTagList(ctx, f.Root)
	tags := repo.Tags(ctx)
	if tags.Len() > 0 {
		if err := ix.cache.PutTags(ctx, f.Root, string(f.Kind), tags); err != nil {
			logger.Warn("Failed to cache tags", "root", f.Root, "error", err.Error())
		}
	}

	files, err := ListFiles(f.Root, ix.registry)
	if err != nil {
		logger.Warn("Skipping repository, cannot list files", "root", f.Root, "error", err.Error())
		return nil, 0, false
	}

	cachedFiles, err := ix.cache.CachedFiles(ctx, f.Root)
	if err != nil {
		logger.Warn("Skipping repository, cannot read cache", "root", f.Root, "error", err.Error())
		return nil, 0, false
	}
	cached := make(map[string]bool, len(cachedFiles))
	for _, file := range cachedFiles {
		cached[file] = true
	}

	jobs := make([]fileJob, 0, len(files))
	for _, file := range files {
		jobs = append(jobs, fileJob{repo: repo, tags: tags, file: file, cached: cached[file]})
		delete(cached, file)
	}

	pruned := 0
	for file := range cached {
		if err := ix.cache.DeleteHistory(ctx, f.Root, file); err != nil {
			logger.Warn("Failed to prune cached history", "root", f.Root, "file", file, "error", err.Error())
			continue
		}
		pruned++
	}
	logger.Debug("Repository prepared", "root", f.Root, "files", len(files), "tags", tags.Len(), "pruned", pruned)
	return jobs, pruned, true
}

// indexFile refreshes one file's cached history. Only storage errors and
// cancellation are returned; retrieval errors are recorded.
func (ix *Indexer) indexFile(ctx context.Context, runID string, job fileJob, t *tally, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	root := job.repo.Root()
	if !job.repo.FileHasHistory(ctx, job.file) {
		if !job.cached || ctx.Err() != nil {
			return nil
		}
		// The file is no longer tracked.
		if err := ix.cache.DeleteHistory(ctx, root, job.file); err != nil {
			return fmt.Errorf("failed to prune history of %s: %w", job.file, err)
		}
		t.mu.Lock()
		t.pruned++
		t.mu.Unlock()
		return nil
	}

	cached, hit, err := ix.cache.GetHistory(ctx, root, job.file)
	if err != nil {
		return err
	}
	since := ""
	if hit && !ix.opts.Full {
		since = cached.LatestRevision
	}

	fresh, err := job.repo.History(ctx, job.file, since)
	if err != nil && since != "" && ctx.Err() == nil {
		// The cached revision may no longer exist, e.g. after a rewrite.
		logger.Debug("Incremental fetch failed, refetching", "file", job.file, "since", since, "error", err.Error())
		since, hit = "", false
		fresh, err = job.repo.History(ctx, job.file, "")
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ix.recordFailure(ctx, runID, root, job.file, err, t, logger)
	}

	merged := fresh
	if hit && since != "" {
		merged = cached.History.Merge(fresh)
	}
	if job.tags.Len() > 0 {
		merged.AssignTags(job.tags, job.repo.Capabilities().TagMatch)
	}

	t.mu.Lock()
	t.files++
	if since != "" && fresh.Len() == 0 {
		t.unchanged++
	}
	t.newEntries += fresh.Len()
	t.mu.Unlock()

	if since != "" && fresh.Len() == 0 {
		return nil
	}
	if err := ix.cache.PutHistory(ctx, root, string(job.repo.Kind()), job.file, merged); err != nil {
		return fmt.Errorf("failed to cache history of %s: %w", job.file, err)
	}
	return nil
}

func (ix *Indexer) recordFailure(ctx context.Context, runID, root, file string, cause error, t *tally, logger *slog.Logger) error {
	t.mu.Lock()
	t.failures++
	t.mu.Unlock()

	logger.Warn("Failed to retrieve history", "root", root, "file", file, "error", cause.Error())

	code := string(errors.CodeOf(cause))
	if code == "" {
		code = string(errors.InternalError)
	}
	return ix.runs.RecordFailure(ctx, storage.Failure{
		RunID:    runID,
		RepoRoot: root,
		File:     file,
		Code:     code,
		Message:  cause.Error(),
	})
}
