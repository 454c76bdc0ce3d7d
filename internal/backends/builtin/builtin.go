// Package builtin assembles the backend registry from configuration.
package builtin

import (
	"log/slog"

	"vcshist/internal/backends"
	"vcshist/internal/backends/bitkeeper"
	"vcshist/internal/backends/git"
	"vcshist/internal/config"
	"vcshist/internal/runner"
)

// NewRegistry registers every enabled backend, BitKeeper first. Each backend
// gets its own in-flight limit on top of the shared runner.
func NewRegistry(cfg *config.Config, r runner.Runner, logger *slog.Logger) *backends.Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	registry := backends.NewRegistry()
	for _, b := range []struct {
		backend backends.Backend
		cfg     config.BackendConfig
	}{
		{bitkeeper.Backend(), cfg.Backends.BitKeeper},
		{git.Backend(), cfg.Backends.Git},
	} {
		if !b.cfg.Enabled {
			continue
		}
		registry.Register(b.backend, backends.Options{
			Command:     b.cfg.Command,
			Runner:      backends.NewLimitedRunner(r, b.cfg.MaxInFlight),
			Logger:      logger,
			TagsEnabled: cfg.History.TagsEnabled,
		})
	}
	return registry
}
