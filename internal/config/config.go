package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"vcshist/internal/paths"
)

// CurrentVersion is the config schema version written by this build
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. VCSHIST_BACKENDS_BITKEEPER_COMMAND
const EnvPrefix = "VCSHIST"

// Config represents the complete vcshist configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version" toml:"version" yaml:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot" toml:"repoRoot" yaml:"repoRoot"`

	Backends  BackendsConfig  `json:"backends" mapstructure:"backends" toml:"backends" yaml:"backends"`
	History   HistoryConfig   `json:"history" mapstructure:"history" toml:"history" yaml:"history"`
	Discovery DiscoveryConfig `json:"discovery" mapstructure:"discovery" toml:"discovery" yaml:"discovery"`
	Indexing  IndexingConfig  `json:"indexing" mapstructure:"indexing" toml:"indexing" yaml:"indexing"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging" toml:"logging" yaml:"logging"`
}

// BackendsConfig contains backend-specific configuration
type BackendsConfig struct {
	BitKeeper BackendConfig `json:"bitkeeper" mapstructure:"bitkeeper" toml:"bitkeeper" yaml:"bitkeeper"`
	Git       BackendConfig `json:"git" mapstructure:"git" toml:"git" yaml:"git"`
}

// BackendConfig configures one version-control backend
type BackendConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	// Command is the client executable; empty means the backend's default command name
	Command string `json:"command" mapstructure:"command" toml:"command" yaml:"command"`
	// MaxInFlight caps concurrent client processes for this backend; 0 means unlimited
	MaxInFlight int `json:"maxInFlight" mapstructure:"maxInFlight" toml:"maxInFlight" yaml:"maxInFlight"`
}

// HistoryConfig contains history retrieval settings
type HistoryConfig struct {
	TagsEnabled bool `json:"tagsEnabled" mapstructure:"tagsEnabled" toml:"tagsEnabled" yaml:"tagsEnabled"`
	TimeoutMs   int  `json:"timeoutMs" mapstructure:"timeoutMs" toml:"timeoutMs" yaml:"timeoutMs"`
}

// DiscoveryConfig controls the repository walk
type DiscoveryConfig struct {
	MaxDepth int      `json:"maxDepth" mapstructure:"maxDepth" toml:"maxDepth" yaml:"maxDepth"`
	Ignore   []string `json:"ignore" mapstructure:"ignore" toml:"ignore" yaml:"ignore"`
	// Nested allows repositories inside other repositories to be discovered
	Nested bool `json:"nested" mapstructure:"nested" toml:"nested" yaml:"nested"`
}

// IndexingConfig controls the history indexer
type IndexingConfig struct {
	Workers  int  `json:"workers" mapstructure:"workers" toml:"workers" yaml:"workers"`
	Compress bool `json:"compress" mapstructure:"compress" toml:"compress" yaml:"compress"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format" toml:"format" yaml:"format"`
	Level  string `json:"level" mapstructure:"level" toml:"level" yaml:"level"`
	// KeepRuns is how many previous index run logs are kept as index.log.N
	KeepRuns int `json:"keepRuns" mapstructure:"keepRuns" toml:"keepRuns" yaml:"keepRuns"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		RepoRoot: ".",
		Backends: BackendsConfig{
			BitKeeper: BackendConfig{Enabled: true, MaxInFlight: 4},
			Git:       BackendConfig{Enabled: true, MaxInFlight: 8},
		},
		History: HistoryConfig{
			TagsEnabled: true,
			TimeoutMs:   60000,
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 8,
			Ignore:   []string{"node_modules", "build", "vendor", ".vcshist"},
			Nested:   false,
		},
		Indexing: IndexingConfig{
			Workers:  4,
			Compress: true,
		},
		Logging: LoggingConfig{
			Format:   "human",
			Level:    "info",
			KeepRuns: 5,
		},
	}
}

// setDefaults registers every key so that environment overrides apply on Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)
	v.SetDefault("backends.bitkeeper.enabled", d.Backends.BitKeeper.Enabled)
	v.SetDefault("backends.bitkeeper.command", d.Backends.BitKeeper.Command)
	v.SetDefault("backends.bitkeeper.maxInFlight", d.Backends.BitKeeper.MaxInFlight)
	v.SetDefault("backends.git.enabled", d.Backends.Git.Enabled)
	v.SetDefault("backends.git.command", d.Backends.Git.Command)
	v.SetDefault("backends.git.maxInFlight", d.Backends.Git.MaxInFlight)
	v.SetDefault("history.tagsEnabled", d.History.TagsEnabled)
	v.SetDefault("history.timeoutMs", d.History.TimeoutMs)
	v.SetDefault("discovery.maxDepth", d.Discovery.MaxDepth)
	v.SetDefault("discovery.ignore", d.Discovery.Ignore)
	v.SetDefault("discovery.nested", d.Discovery.Nested)
	v.SetDefault("indexing.workers", d.Indexing.Workers)
	v.SetDefault("indexing.compress", d.Indexing.Compress)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.keepRuns", d.Logging.KeepRuns)
}

// LoadConfig loads configuration from <repoRoot>/.vcshist/config.json,
// applying VCSHIST_* environment overrides on top of file values and defaults.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.StateDir(repoRoot))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.RepoRoot == "" || cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}

	return &cfg, nil
}

// Save writes the configuration to <repoRoot>/.vcshist/config.json
func (c *Config) Save(repoRoot string) error {
	if _, err := paths.EnsureStateDir(repoRoot); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Clean(paths.ConfigPath(repoRoot)), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.History.TimeoutMs < 0 {
		return &ConfigError{Field: "history.timeoutMs", Message: "must not be negative"}
	}
	if c.Indexing.Workers < 0 {
		return &ConfigError{Field: "indexing.workers", Message: "must not be negative"}
	}
	if c.Discovery.MaxDepth < 0 {
		return &ConfigError{Field: "discovery.maxDepth", Message: "must not be negative"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// Encode renders the configuration as json, toml or yaml.
func (c *Config) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return json.MarshalIndent(c, "", "  ")
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "yaml":
		return yaml.Marshal(c)
	default:
		return nil, &ConfigError{Field: "format", Message: fmt.Sprintf("unsupported format %q", format)}
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
