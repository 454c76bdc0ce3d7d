// Package version holds build information for vcshist.
package version

import (
	"runtime"
)

// These variables can be overridden at build time using ldflags:
// go build -ldflags "-X vcshist/internal/version.Version=1.0.0 -X vcshist/internal/version.Commit=abc123"
var (
	// Version is the semantic version of vcshist
	Version = "0.4.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns a short version string with the abbreviated commit when known
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information
func Full() string {
	return "vcshist version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}
