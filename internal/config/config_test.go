package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if !cfg.Backends.BitKeeper.Enabled {
		t.Error("BitKeeper backend should be enabled by default")
	}
	if !cfg.Backends.Git.Enabled {
		t.Error("Git backend should be enabled by default")
	}
	if cfg.Backends.BitKeeper.Command != "" {
		t.Errorf("BitKeeper command = %q, want empty (backend default)", cfg.Backends.BitKeeper.Command)
	}
	if !cfg.History.TagsEnabled {
		t.Error("Tag display should be enabled by default")
	}
	if cfg.History.TimeoutMs <= 0 {
		t.Error("TimeoutMs should be positive")
	}
	if cfg.Indexing.Workers <= 0 {
		t.Error("Workers should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"defaults", func(*Config) {}, "", false},
		{"version 0", func(c *Config) { c.Version = 0 }, "version", true},
		{"version 2", func(c *Config) { c.Version = 2 }, "version", true},
		{"negative timeout", func(c *Config) { c.History.TimeoutMs = -1 }, "history.timeoutMs", true},
		{"negative workers", func(c *Config) { c.Indexing.Workers = -3 }, "indexing.workers", true},
		{"negative depth", func(c *Config) { c.Discovery.MaxDepth = -1 }, "discovery.maxDepth", true},
		{"json logging", func(c *Config) { c.Logging.Format = "json" }, "", false},
		{"bad logging", func(c *Config) { c.Logging.Format = "xml" }, "logging.format", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() error type = %T, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "version", Message: "unsupported version 99"}

	want := "config error in field 'version': unsupported version 99"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	root := t.TempDir()

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.RepoRoot != root {
		t.Errorf("RepoRoot = %q, want %q", cfg.RepoRoot, root)
	}
	if cfg.Indexing.Workers != DefaultConfig().Indexing.Workers {
		t.Errorf("Workers = %d, want default", cfg.Indexing.Workers)
	}
	if !cfg.History.TagsEnabled {
		t.Error("TagsEnabled should default to true")
	}
}

func TestLoadConfig_SaveRoundTrip(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Backends.BitKeeper.Command = "/opt/bitkeeper/bk"
	cfg.History.TagsEnabled = false
	cfg.Indexing.Workers = 9
	cfg.Discovery.Ignore = []string{"out"}
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".vcshist", "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Backends.BitKeeper.Command != "/opt/bitkeeper/bk" {
		t.Errorf("BitKeeper command = %q", loaded.Backends.BitKeeper.Command)
	}
	if loaded.History.TagsEnabled {
		t.Error("TagsEnabled should be false after reload")
	}
	if loaded.Indexing.Workers != 9 {
		t.Errorf("Workers = %d, want 9", loaded.Indexing.Workers)
	}
	if len(loaded.Discovery.Ignore) != 1 || loaded.Discovery.Ignore[0] != "out" {
		t.Errorf("Ignore = %v, want [out]", loaded.Discovery.Ignore)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("VCSHIST_BACKENDS_BITKEEPER_COMMAND", "/usr/local/bin/bk")
	t.Setenv("VCSHIST_INDEXING_WORKERS", "2")

	cfg, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Backends.BitKeeper.Command != "/usr/local/bin/bk" {
		t.Errorf("BitKeeper command = %q, want env override", cfg.Backends.BitKeeper.Command)
	}
	if cfg.Indexing.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Indexing.Workers)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".vcshist")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(root); err == nil {
		t.Error("LoadConfig() should fail on malformed config")
	}
}

func TestConfig_Encode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backends.BitKeeper.Command = "bk"

	t.Run("json", func(t *testing.T) {
		data, err := cfg.Encode("json")
		if err != nil {
			t.Fatalf("Encode(json) error = %v", err)
		}
		if !strings.Contains(string(data), `"tagsEnabled": true`) {
			t.Errorf("json output missing tagsEnabled: %s", data)
		}
	})

	t.Run("toml", func(t *testing.T) {
		data, err := cfg.Encode("toml")
		if err != nil {
			t.Fatalf("Encode(toml) error = %v", err)
		}
		var back Config
		if _, err := toml.Decode(string(data), &back); err != nil {
			t.Fatalf("toml.Decode() error = %v", err)
		}
		if back.Backends.BitKeeper.Command != "bk" {
			t.Errorf("toml command = %q, want bk", back.Backends.BitKeeper.Command)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		data, err := cfg.Encode("yaml")
		if err != nil {
			t.Fatalf("Encode(yaml) error = %v", err)
		}
		var back Config
		if err := yaml.Unmarshal(data, &back); err != nil {
			t.Fatalf("yaml.Unmarshal() error = %v", err)
		}
		if back.Indexing.Workers != cfg.Indexing.Workers {
			t.Errorf("yaml workers = %d, want %d", back.Indexing.Workers, cfg.Indexing.Workers)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := cfg.Encode("ini"); err == nil {
			t.Error("Encode(ini) should fail")
		}
	})
}
