package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"vcshist/internal/backends"
	"vcshist/internal/backends/bitkeeper"
	"vcshist/internal/config"
	"vcshist/internal/testutil"
)

func kinds(r *backends.Registry) []backends.Kind {
	var out []backends.Kind
	for _, b := range r.Backends() {
		out = append(out, b.Kind)
	}
	return out
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		want   []backends.Kind
	}{
		{"defaults", func(*config.Config) {}, []backends.Kind{backends.KindBitKeeper, backends.KindGit}},
		{"git disabled", func(c *config.Config) { c.Backends.Git.Enabled = false }, []backends.Kind{backends.KindBitKeeper}},
		{"bitkeeper disabled", func(c *config.Config) { c.Backends.BitKeeper.Enabled = false }, []backends.Kind{backends.KindGit}},
		{"none", func(c *config.Config) {
			c.Backends.Git.Enabled = false
			c.Backends.BitKeeper.Enabled = false
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			got := kinds(NewRegistry(cfg, testutil.NewFakeRunner(), nil))
			if len(got) != len(tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("kinds[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewRegistry_BitKeeperWinsOverGit(t *testing.T) {
	root := t.TempDir()
	for _, m := range []string{".bk", ".git"} {
		if err := os.MkdirAll(filepath.Join(root, m), 0755); err != nil {
			t.Fatal(err)
		}
	}

	repo, err := NewRegistry(nil, testutil.NewFakeRunner(), nil).Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if repo.Kind() != backends.KindBitKeeper {
		t.Errorf("Kind() = %q, want bitkeeper", repo.Kind())
	}
}

func TestNewRegistry_CommandOverride(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".bk"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Backends.BitKeeper.Command = "/opt/bitkeeper/bin/bk"

	repo, err := NewRegistry(cfg, testutil.NewFakeRunner(), nil).OpenKind(backends.KindBitKeeper, root)
	if err != nil {
		t.Fatal(err)
	}
	bk, ok := repo.(*bitkeeper.Repository)
	if !ok {
		t.Fatalf("repository is %T", repo)
	}
	if bk.CommandPath() != "/opt/bitkeeper/bin/bk" {
		t.Errorf("CommandPath() = %q", bk.CommandPath())
	}
}
