package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateDirName is the per-tree state directory holding config, cache and logs
	StateDirName = ".vcshist"
	// DBFileName is the sqlite history cache file inside the state directory
	DBFileName = "history.db"
	// ConfigFileName is the config file inside the state directory
	ConfigFileName = "config.json"
)

// StateDir returns <root>/.vcshist
func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

// DBPath returns the history cache database path for root.
func DBPath(root string) string {
	return filepath.Join(StateDir(root), DBFileName)
}

// ConfigPath returns the config file path for root.
func ConfigPath(root string) string {
	return filepath.Join(StateDir(root), ConfigFileName)
}

// LogsDir returns <root>/.vcshist/logs
func LogsDir(root string) string {
	return filepath.Join(StateDir(root), "logs")
}

// IndexLogPath returns the path of the index run log.
func IndexLogPath(root string) string {
	return filepath.Join(LogsDir(root), "index.log")
}

// EnsureStateDir creates the state directory if needed and returns it.
func EnsureStateDir(root string) (string, error) {
	dir := StateDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureLogsDir creates the logs directory if needed and returns it.
func EnsureLogsDir(root string) (string, error) {
	dir := LogsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// CanonicalizePath converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithin checks if a path is within root
func IsWithin(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// SplitFile returns the absolute directory and base name of file.
// Adapters run the backend tool inside the file's directory with the base name as argument.
func SplitFile(file string) (dir, base string, err error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", "", err
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}
