// Package testutil provides test doubles and fixture loading for backend tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
)

// Fixture loads captured client output from testdata/fixtures/<backend>/<name>.
// The file is returned verbatim so tests exercise real line endings and tabs.
func Fixture(t *testing.T, backend, name string) string {
	t.Helper()

	path := filepath.Join(getFixturesRoot(t), backend, name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Fixture not found: %s: %v", path, err)
	}
	return string(data)
}

// FixtureLines returns the non-empty lines of a fixture
func FixtureLines(t *testing.T, backend, name string) []string {
	t.Helper()

	var lines []string
	for _, l := range strings.Split(Fixture(t, backend, name), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// AvailableFixtures returns the fixture names recorded for a backend.
func AvailableFixtures(t *testing.T, backend string) []string {
	t.Helper()

	entries, err := os.ReadDir(filepath.Join(getFixturesRoot(t), backend))
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && !isHidden(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

// getFixturesRoot returns the absolute path to testdata/fixtures/.
func getFixturesRoot(t *testing.T) string {
	t.Helper()

	// Get the directory of this source file
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	fixturesRoot := filepath.Join(projectRoot, "testdata", "fixtures")

	if _, err := os.Stat(fixturesRoot); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", fixturesRoot)
	}

	return fixturesRoot
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
