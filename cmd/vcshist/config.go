package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vcshist/internal/config"
	"vcshist/internal/paths"
)

var configAs string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vcshist configuration",
	Long:  "View and manage vcshist configuration stored in .vcshist/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file and
VCSHIST_* environment overrides are applied.

Examples:
  vcshist config show
  vcshist config show --as=toml
  VCSHIST_BACKENDS_GIT_ENABLED=false vcshist config show --as=yaml`,
	Args: cobra.NoArgs,
	Run:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	Run:   runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Args:  cobra.NoArgs,
	Run:   runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configAs, "as", "json", "Encoding (json, toml, yaml)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	root := mustGetRoot()

	cfg, err := config.LoadConfig(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	data, err := cfg.Encode(configAs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(strings.TrimRight(string(data), "\n"))
}

func runConfigInit(cmd *cobra.Command, args []string) {
	root := mustGetRoot()
	path := paths.ConfigPath(root)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Config already exists at %s\n", path)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	for _, name := range envVariables() {
		fmt.Println(name)
	}
}

// envVariables lists the override names for every config key
func envVariables() []string {
	keys := []string{
		"backends.bitkeeper.enabled", "backends.bitkeeper.command", "backends.bitkeeper.maxInFlight",
		"backends.git.enabled", "backends.git.command", "backends.git.maxInFlight",
		"history.tagsEnabled", "history.timeoutMs",
		"discovery.maxDepth", "discovery.ignore", "discovery.nested",
		"indexing.workers", "indexing.compress",
		"logging.format", "logging.level", "logging.keepRuns",
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, config.EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(k, ".", "_")))
	}
	sort.Strings(names)
	return names
}
