package main

import (
	"context"

	"github.com/spf13/cobra"

	"vcshist/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show vcshist and client versions",
	Long: `Print build information, plus the version of each enabled backend's
client tool as reported by the tool itself.`,
	Args: cobra.NoArgs,
	Run:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versioned is implemented by repositories that report their client version
type versioned interface {
	Version(ctx context.Context) string
}

func runVersion(cmd *cobra.Command, args []string) {
	env := mustSetup(cmd)
	defer env.factory.Close()
	ctx, stop := newContext()
	defer stop()

	resp := &VersionResponseCLI{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		Clients:   make(map[string]string),
	}
	for _, b := range env.registry.Backends() {
		repo, err := env.registry.OpenKind(b.Kind, env.root)
		if err != nil {
			continue
		}
		if !repo.IsAvailable(ctx) {
			resp.Clients[string(b.Kind)] = "not available"
			continue
		}
		if v, ok := repo.(versioned); ok {
			resp.Clients[string(b.Kind)] = v.Version(ctx)
		}
	}
	printResponse(resp)
}
