package backends

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vcshist/internal/errors"
	"vcshist/internal/history"
	"vcshist/internal/runner"
)

type stubRepository struct {
	Repository
	root string
	kind Kind
}

func (s *stubRepository) Root() string { return s.root }
func (s *stubRepository) Kind() Kind   { return s.kind }

func stubBackend(kind Kind, marker string) Backend {
	return Backend{
		Kind:             kind,
		DefaultCommand:   string(kind) + "-client",
		IsRepositoryRoot: func(path string) bool { return HasMarkerDir(path, marker) },
		New: func(root string, opts Options) Repository {
			return &stubRepository{root: root, kind: kind}
		},
	}
}

func TestRegistry_DetectOrder(t *testing.T) {
	dir := t.TempDir()
	for _, m := range []string{".bk", ".git"} {
		if err := os.Mkdir(filepath.Join(dir, m), 0755); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRegistry()
	r.Register(stubBackend(KindBitKeeper, ".bk"), Options{})
	r.Register(stubBackend(KindGit, ".git"), Options{})

	b, ok := r.Detect(dir)
	if !ok || b.Kind != KindBitKeeper {
		t.Errorf("Detect() = %v, %v, want bitkeeper", b.Kind, ok)
	}

	if _, ok := r.Detect(t.TempDir()); ok {
		t.Error("Detect() on a plain directory should find nothing")
	}
}

func TestRegistry_Open(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	r.Register(stubBackend(KindGit, ".git"), Options{})

	repo, err := r.Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if repo.Kind() != KindGit || repo.Root() != dir {
		t.Errorf("Open() = %v at %s", repo.Kind(), repo.Root())
	}

	_, err = r.Open(t.TempDir())
	if !errors.HasCode(err, errors.NotFound) {
		t.Errorf("Open() on plain dir error = %v, want NOT_FOUND", err)
	}

	if _, err := r.OpenKind(KindBitKeeper, dir); !errors.HasCode(err, errors.NotFound) {
		t.Errorf("OpenKind() for unregistered kind error = %v", err)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(stubBackend(KindGit, ".git"), Options{})
	r.Register(stubBackend(KindGit, ".hg"), Options{})

	if n := len(r.Backends()); n != 1 {
		t.Errorf("Backends() has %d entries, want 1", n)
	}
	if _, ok := r.Lookup(KindGit); !ok {
		t.Error("Lookup(git) should succeed")
	}
}

func TestRegistry_FindRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".bk"), 0755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src", "lib")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "main.c")
	if err := os.WriteFile(file, []byte("int main;\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	r.Register(stubBackend(KindBitKeeper, ".bk"), Options{})

	got, b, ok := r.FindRoot(file)
	if !ok {
		t.Fatal("FindRoot() found nothing")
	}
	want, _ := filepath.Abs(root)
	if got != want || b.Kind != KindBitKeeper {
		t.Errorf("FindRoot() = %s (%s), want %s", got, b.Kind, want)
	}
}

func TestHasMarker(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".git"), []byte("gitdir: ../x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !HasMarker(dir, ".git") {
		t.Error("HasMarker should accept a marker file")
	}
	if HasMarkerDir(dir, ".git") {
		t.Error("HasMarkerDir should reject a marker file")
	}
}

type countingRunner struct {
	inFlight int32
	peak     int32
}

func (c *countingRunner) Run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	n := atomic.AddInt32(&c.inFlight, 1)
	for {
		p := atomic.LoadInt32(&c.peak)
		if n <= p || atomic.CompareAndSwapInt32(&c.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt32(&c.inFlight, -1)
	return &runner.Result{}, nil
}

func (c *countingRunner) Stream(ctx context.Context, cmd runner.Command, fn runner.LineFunc) (*runner.Result, error) {
	return c.Run(ctx, cmd)
}

func TestLimitedRunner(t *testing.T) {
	inner := &countingRunner{}
	limited := NewLimitedRunner(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = limited.Run(context.Background(), runner.Command{Path: "bk"})
		}()
	}
	wg.Wait()

	if inner.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", inner.peak)
	}
	if NewLimitedRunner(inner, 0) != runner.Runner(inner) {
		t.Error("zero limit should return the inner runner")
	}
}

func TestLimitedRunner_ContextCancelled(t *testing.T) {
	limited := NewLimitedRunner(&countingRunner{}, 1).(*LimitedRunner)
	if err := limited.sem.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer limited.sem.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Run(ctx, runner.Command{Path: "bk"}); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
}

func TestTagCache_BuildsOnce(t *testing.T) {
	var calls int32
	cache := NewTagCache(func(ctx context.Context, dir string) (*history.TagList, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return history.NewTagList([]history.TagEntry{{Revision: "1.2", Names: []string{"v1"}}}), nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.Get(context.Background(), "/repo").Len() != 1 {
				t.Error("Get() should return the built list")
			}
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("builder ran %d times, want 1", calls)
	}

	cache.Rebuild(context.Background(), "/repo")
	if calls != 2 {
		t.Errorf("Rebuild should run the builder again, calls = %d", calls)
	}
}

func TestTagCache_FailureLeavesEmpty(t *testing.T) {
	var calls int32
	cache := NewTagCache(func(ctx context.Context, dir string) (*history.TagList, error) {
		atomic.AddInt32(&calls, 1)
		return nil, stderrors.New("bk tags failed")
	}, nil)

	if cache.Built() {
		t.Error("new cache should not be built")
	}
	if got := cache.Get(context.Background(), "/repo"); got.Len() != 0 {
		t.Errorf("failed build should leave empty list, got %d", got.Len())
	}
	cache.Get(context.Background(), "/repo")
	if calls != 1 {
		t.Errorf("a failed build should not be retried implicitly, calls = %d", calls)
	}
}

func TestRetrievalError(t *testing.T) {
	cmd := runner.Command{Path: "bk", Args: []string{"parent", "-1il"}, Dir: "/repo"}
	err := RetrievalError(cmd, &runner.Result{ExitCode: 1, Stderr: []byte("bk: cannot connect\n")})

	if err.Code != errors.RetrievalFailed {
		t.Errorf("Code = %s", err.Code)
	}
	if err.Message != "bk: cannot connect" {
		t.Errorf("Message = %q, want stderr verbatim", err.Message)
	}

	if u := Unsupported(KindBitKeeper, "update"); u.Code != errors.UnsupportedOperation {
		t.Errorf("Unsupported code = %s", u.Code)
	}
}
