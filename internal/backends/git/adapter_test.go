package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vcshist/internal/backends"
	"vcshist/internal/errors"
	"vcshist/internal/testutil"
)

var (
	hashA = strings.Repeat("a", 40)
	hashB = strings.Repeat("b", 40)
	hashC = strings.Repeat("c", 40)
)

// setupTestAdapter creates an adapter over a scripted client
func setupTestAdapter(t *testing.T, fake *testutil.FakeRunner, tags bool) *GitAdapter {
	t.Helper()
	return NewGitAdapter(t.TempDir(), backends.Options{Runner: fake, TagsEnabled: tags})
}

func historyArgs(since string) []string {
	args := []string{"-c", "core.quotePath=false", "log", "--follow", "--name-status", logFormat}
	if since != "" {
		args = append(args, since+"..HEAD")
	}
	return append(args, "--", "lexer.go")
}

func TestGitAdapter_IsRepositoryRoot(t *testing.T) {
	dir := t.TempDir()
	if IsRepositoryRoot(dir) {
		t.Error("plain directory is not a repository")
	}

	worktree := t.TempDir()
	if err := os.WriteFile(filepath.Join(worktree, ".git"), []byte("gitdir: /elsewhere\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsRepositoryRoot(worktree) {
		t.Error("a .git file marks a worktree root")
	}
}

func TestGitAdapter_Capabilities(t *testing.T) {
	adapter := setupTestAdapter(t, testutil.NewFakeRunner(), false)

	if !adapter.HasHistoryForDirectories() || adapter.HasFileBasedTags() {
		t.Error("unexpected static capabilities")
	}
	if caps := adapter.Capabilities(); !caps.Branches || len(caps.DateLayouts) == 0 {
		t.Errorf("Capabilities() = %+v", caps)
	}
}

func TestGitAdapter_IsAvailable(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("--version").Returns(testutil.Fixture(t, "git", "version.txt"))
	adapter := setupTestAdapter(t, fake, false)

	if !adapter.IsAvailable(context.Background()) || !adapter.IsAvailable(context.Background()) {
		t.Fatal("IsAvailable() = false")
	}
	if fake.Count("--version") != 1 {
		t.Errorf("probe ran %d times", fake.Count("--version"))
	}
	if adapter.Version(context.Background()) != "2.43.0" {
		t.Errorf("Version() = %s", adapter.Version(context.Background()))
	}

	missing := setupTestAdapter(t, testutil.NewMissingRunner(), false)
	if missing.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = true for a missing client")
	}
}

func TestGitAdapter_DetermineBranch(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
		wantOK bool
	}{
		{"on branch", "main\n", "main", true},
		{"detached", "HEAD\n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeRunner()
			fake.On("rev-parse", "--abbrev-ref", "HEAD").Returns(tt.stdout)
			adapter := setupTestAdapter(t, fake, false)

			got, ok, err := adapter.DetermineBranch(context.Background(), "")
			if err != nil || got != tt.want || ok != tt.wantOK {
				t.Errorf("DetermineBranch() = %q, %v, %v", got, ok, err)
			}
		})
	}
}

func TestGitAdapter_DetermineParent(t *testing.T) {
	tests := []struct {
		name     string
		stdout   string
		exit     int
		stderr   string
		want     string
		wantOK   bool
		wantCode errors.ErrorCode
	}{
		{"origin set", "git@example.com:org/repo.git\n", 0, "", "git@example.com:org/repo.git", true, ""},
		{"no origin", "", 1, "", "", false, ""},
		{"broken config", "", 3, "fatal: bad config line 4", "", false, errors.RetrievalFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeRunner()
			fake.On("config", "--get", "remote.origin.url").Returns(tt.stdout).Fails(tt.exit, tt.stderr)
			adapter := setupTestAdapter(t, fake, false)

			got, ok, err := adapter.DetermineParent(context.Background(), "")
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Fatalf("error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil || got != tt.want || ok != tt.wantOK {
				t.Errorf("DetermineParent() = %q, %v, %v", got, ok, err)
			}
		})
	}
}

func TestGitAdapter_FileHasHistory(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("ls-files", "-z", "--", "lexer.go").Returns("lexer.go\x00")
	fake.On("ls-files", "-z", "--", "notes.txt").Returns("")
	fake.On("ls-files", "-z", "--", "café.txt").Returns("café.txt\x00")
	adapter := setupTestAdapter(t, fake, false)

	if !adapter.FileHasHistory(context.Background(), "src/lexer.go") {
		t.Error("tracked file reported untracked")
	}
	if !adapter.FileHasHistory(context.Background(), "docs/café.txt") {
		t.Error("tracked non-ASCII file reported untracked")
	}
	if adapter.FileHasAnnotation(context.Background(), "src/notes.txt") {
		t.Error("untracked file reported tracked")
	}
}

func TestGitAdapter_History(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On(historyArgs("")...).Returns(testutil.Fixture(t, "git", "log.txt"))
	adapter := setupTestAdapter(t, fake, false)

	h, err := adapter.History(context.Background(), "src/lexer.go", "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if got := strings.Join(h.Revisions(), ","); got != strings.Join([]string{hashA, hashB, hashC}, ",") {
		t.Fatalf("Revisions() = %s", got)
	}

	first := h.Entries[0]
	if first.Author != "Ada Lovelace" {
		t.Errorf("Author = %q", first.Author)
	}
	if !first.Date.Equal(time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", first.Date)
	}
	wantComments := []string{"Fix overflow in tokenizer", "", "The buffer was sized from the wrong length."}
	if strings.Join(first.Comments, "|") != strings.Join(wantComments, "|") {
		t.Errorf("Comments = %q", first.Comments)
	}
	if h.Entries[1].RenamedFrom != "src/scanner.go" {
		t.Errorf("RenamedFrom = %q", h.Entries[1].RenamedFrom)
	}
	if h.Entries[0].RenamedFrom != "" || h.Entries[2].RenamedFrom != "" {
		t.Error("only the rename commit should carry RenamedFrom")
	}
}

func TestGitAdapter_HistoryNonASCIIPaths(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("-c", "core.quotePath=false", "log", "--follow", "--name-status", logFormat, "--", "café.txt").
		Returns(testutil.Fixture(t, "git", "log_renames.txt"))
	adapter := setupTestAdapter(t, fake, false)

	h, err := adapter.History(context.Background(), "docs/café.txt", "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}

	first := h.Entries[0]
	if len(first.Comments) != 1 || first.Comments[0] != "Rename notes to café" {
		t.Errorf("Comments = %q, want the message without the end marker", first.Comments)
	}
	if first.RenamedFrom != "docs/notes.txt" {
		t.Errorf("RenamedFrom = %q, name-status leaked into the message?", first.RenamedFrom)
	}
	if first.Author != "José Núñez" {
		t.Errorf("Author = %q", first.Author)
	}
	if got := h.Entries[1].RenamedFrom; got != "docs/résumé.txt" {
		t.Errorf("quoted RenamedFrom = %q, want docs/résumé.txt", got)
	}
}

func TestUnquotePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"src/lexer.go", "src/lexer.go"},
		{"docs/café.txt", "docs/café.txt"},
		{`"caf\303\251.txt"`, "café.txt"},
		{`"tab\there.txt"`, "tab\there.txt"},
		{`"unterminated`, `"unterminated`},
		{`"bad\qescape"`, `"bad\qescape"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := unquotePath(tt.in); got != tt.want {
				t.Errorf("unquotePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGitAdapter_HistorySince(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On(historyArgs(hashB)...).Returns(testutil.Fixture(t, "git", "log.txt"))
	adapter := setupTestAdapter(t, fake, false)

	h, err := adapter.History(context.Background(), "src/lexer.go", hashB)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	for _, e := range h.Entries {
		if e.Revision == hashB {
			t.Error("since revision must be excluded")
		}
	}
}

func TestGitAdapter_HistoryFailure(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On(historyArgs("")...).Fails(128, "fatal: bad revision")
	adapter := setupTestAdapter(t, fake, false)

	_, err := adapter.History(context.Background(), "src/lexer.go", "")
	if !errors.HasCode(err, errors.RetrievalFailed) || !strings.Contains(err.Error(), "fatal: bad revision") {
		t.Errorf("error = %v", err)
	}
}

func TestGitAdapter_HistoryWithTags(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("--version").Returns(testutil.Fixture(t, "git", "version.txt"))
	fake.On("for-each-ref", "--sort=-creatordate", tagFormatISO, "refs/tags").Returns(testutil.Fixture(t, "git", "tags.txt"))
	fake.On(historyArgs("")...).Returns(testutil.Fixture(t, "git", "log.txt"))
	adapter := setupTestAdapter(t, fake, true)

	h, err := adapter.History(context.Background(), "src/lexer.go", "")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	want := []string{"v1.1.0,stable", "", "v1.0.0"}
	for i, e := range h.Entries {
		if got := strings.Join(e.Tags, ","); got != want[i] {
			t.Errorf("entry %d tags = %q, want %q", i, got, want[i])
		}
	}
}

func TestGitAdapter_TagsOldClient(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("--version").Returns("git version 1.9.5\n")
	fake.On("for-each-ref", "--sort=-creatordate", tagFormatRFC2822, "refs/tags").
		Returns(hashA + "\t\tMon, 11 Mar 2024 10:00:00 +0000\tv1.1.0\n")
	adapter := setupTestAdapter(t, fake, true)

	tags := adapter.Tags(context.Background())
	if tags.Len() != 1 {
		t.Fatalf("Tags().Len() = %d, want 1", tags.Len())
	}
	if e := tags.Entries()[0]; e.Date.Day() != 11 || e.Names[0] != "v1.1.0" {
		t.Errorf("entry = %+v", e)
	}
}

func TestGitAdapter_Annotate(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("blame", "--line-porcelain", "--", "lexer.go").Returns(testutil.Fixture(t, "git", "blame.txt"))
	adapter := setupTestAdapter(t, fake, false)

	a, err := adapter.Annotate(context.Background(), "src/lexer.go", "")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}
	if a.Lines[0].Author != "Ada Lovelace" || a.Lines[0].Revision != hashA || a.Lines[0].Text != "package lexer" {
		t.Errorf("line 1 = %+v", a.Lines[0])
	}
	if a.Lines[1].Text != "" || a.Lines[1].Number != 2 {
		t.Errorf("line 2 = %+v", a.Lines[1])
	}
	if a.Lines[2].Author != "Grace Hopper" || a.Lines[2].Revision != hashC {
		t.Errorf("line 3 = %+v", a.Lines[2])
	}
}

func TestGitAdapter_AnnotateMalformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"content without header", "\torphan line\n"},
		{"truncated", hashA + " 1 1 1\nauthor Ada\n"},
		{"garbage", "not porcelain\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeRunner()
			fake.On("blame", "--line-porcelain", "v2", "--", "lexer.go").Returns(tt.output)
			adapter := setupTestAdapter(t, fake, false)

			a, err := adapter.Annotate(context.Background(), "src/lexer.go", "v2")
			if !errors.HasCode(err, errors.MalformedOutput) || a != nil {
				t.Errorf("Annotate() = %v, %v, want MALFORMED_OUTPUT", a, err)
			}
		})
	}
}

func TestGitAdapter_FileContent(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("show", "HEAD:./lexer.go").Returns("package lexer\n")
	fake.On("show", "deadbeef:./lexer.go").Fails(128, "fatal: invalid object name")
	adapter := setupTestAdapter(t, fake, false)

	got, ok := adapter.FileContent(context.Background(), "src", "lexer.go", "")
	if !ok || string(got) != "package lexer\n" {
		t.Errorf("FileContent() = %q, %v", got, ok)
	}
	if calls := fake.Calls(); calls[0].Dir != filepath.Join(adapter.Root(), "src") {
		t.Errorf("Dir = %q", calls[0].Dir)
	}

	if _, ok := adapter.FileContent(context.Background(), "src", "lexer.go", "deadbeef"); ok {
		t.Error("FileContent() should report failure")
	}
}

func TestGitAdapter_Update(t *testing.T) {
	fake := testutil.NewFakeRunner()
	fake.On("pull", "--ff-only").Returns("Already up to date.\n")
	adapter := setupTestAdapter(t, fake, false)

	if err := adapter.Update(context.Background()); err != nil {
		t.Errorf("Update() error = %v", err)
	}

	failing := testutil.NewFakeRunner()
	failing.On("pull", "--ff-only").Fails(1, "fatal: Not possible to fast-forward, aborting.")
	if err := setupTestAdapter(t, failing, false).Update(context.Background()); !errors.HasCode(err, errors.RetrievalFailed) {
		t.Errorf("Update() error = %v, want RETRIEVAL_FAILED", err)
	}
}
