package backends

import (
	"context"

	"vcshist/internal/runner"
)

// semaphore implements a counting semaphore for rate limiting
type semaphore struct {
	permits chan struct{}
}

// newSemaphore creates a semaphore with the given number of permits
func newSemaphore(permits int) *semaphore {
	s := &semaphore{
		permits: make(chan struct{}, permits),
	}
	for i := 0; i < permits; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire acquires a permit, blocking if none available
func (s *semaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release releases a permit back to the semaphore
func (s *semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Should never happen unless Release called more than Acquire
	}
}

// LimitedRunner caps the number of client processes one backend runs at once.
// Many adapters share a single LimitedRunner per backend kind, so an indexing
// worker pool cannot fork an unbounded number of clients.
type LimitedRunner struct {
	inner runner.Runner
	sem   *semaphore
}

// NewLimitedRunner wraps inner. maxInFlight <= 0 returns inner unchanged.
func NewLimitedRunner(inner runner.Runner, maxInFlight int) runner.Runner {
	if maxInFlight <= 0 {
		return inner
	}
	return &LimitedRunner{inner: inner, sem: newSemaphore(maxInFlight)}
}

// Run waits for a permit, then runs cmd
func (l *LimitedRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if err := l.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer l.sem.Release()
	return l.inner.Run(ctx, cmd)
}

// Stream waits for a permit, then streams cmd
func (l *LimitedRunner) Stream(ctx context.Context, cmd runner.Command, fn runner.LineFunc) (*runner.Result, error) {
	if err := l.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer l.sem.Release()
	return l.inner.Stream(ctx, cmd, fn)
}
