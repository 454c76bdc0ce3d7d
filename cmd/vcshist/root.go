package main

import (
	"github.com/spf13/cobra"

	"vcshist/internal/version"
)

var (
	// formatFlag is the --format flag shared by every command
	formatFlag string
	// rootFlag is the --root flag; empty means the working directory
	rootFlag  string
	verbosity int
	quiet     bool
)

var rootCmd = &cobra.Command{
	Use:   "vcshist",
	Short: "vcshist - version-control history retrieval",
	Long: `vcshist retrieves file history, annotations, tags and historical file
contents from version-control repositories through a uniform interface.
BitKeeper and Git repositories are supported; the client tools must be installed.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("vcshist version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", string(FormatJSON), "Output format (json, human, yaml)")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Directory holding .vcshist state (default: working directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress log output")
}
