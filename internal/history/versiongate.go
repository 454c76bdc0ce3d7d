package history

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
)

// OldestVersion is assumed when a client's version output cannot be parsed.
var OldestVersion = mustVersion("0.0.0")

// VersionProbe runs the client's version command. ok is false when the
// client could not be executed or exited non-zero.
type VersionProbe func(ctx context.Context) (output string, ok bool)

// VersionGate probes a client binary once and answers availability and
// version-threshold questions from the memoized result.
type VersionGate struct {
	probe   VersionProbe
	pattern *regexp.Regexp

	once    sync.Once
	working bool
	version *semver.Version
}

// NewVersionGate creates a gate. pattern must capture the dotted version in
// its first group.
func NewVersionGate(pattern *regexp.Regexp, probe VersionProbe) *VersionGate {
	return &VersionGate{probe: probe, pattern: pattern}
}

func (g *VersionGate) detect(ctx context.Context) {
	g.once.Do(func() {
		g.version = OldestVersion
		out, ok := g.probe(ctx)
		if !ok {
			return
		}
		g.working = true
		g.version = ParseToolVersion(g.pattern, out)
	})
}

// Working reports whether the client could be executed.
func (g *VersionGate) Working(ctx context.Context) bool {
	g.detect(ctx)
	return g.working
}

// Version returns the detected client version, or OldestVersion.
func (g *VersionGate) Version(ctx context.Context) *semver.Version {
	g.detect(ctx)
	return g.version
}

// AtLeast reports whether the detected version is at or above threshold.
func (g *VersionGate) AtLeast(ctx context.Context, threshold *semver.Version) bool {
	return !g.Version(ctx).LessThan(threshold)
}

// Choose returns newer when the client meets threshold and older otherwise.
func (g *VersionGate) Choose(ctx context.Context, threshold *semver.Version, newer, older string) string {
	if g.AtLeast(ctx, threshold) {
		return newer
	}
	return older
}

// ParseToolVersion extracts a version from client output. Components past
// major.minor.patch are ignored. Unparsable output yields OldestVersion.
func ParseToolVersion(pattern *regexp.Regexp, output string) *semver.Version {
	m := pattern.FindStringSubmatch(output)
	if len(m) < 2 {
		return OldestVersion
	}
	parts := strings.Split(m[1], ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v, err := semver.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return OldestVersion
	}
	return v
}

// MustVersion parses a threshold constant.
func MustVersion(s string) *semver.Version {
	return mustVersion(s)
}

func mustVersion(s string) *semver.Version {
	v, err := semver.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}
