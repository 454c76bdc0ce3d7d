package slogutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenRunLog starts a fresh log file at path for one index run.
// The previous log becomes path.1, path.1 becomes path.2, and so on; at most
// keep earlier logs survive. keep <= 0 discards the previous log.
func OpenRunLog(path string, keep int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := shiftRunLogs(path, keep); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
}

func shiftRunLogs(path string, keep int) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if keep <= 0 {
		return os.Remove(path)
	}

	if err := os.Remove(runLogPath(path, keep)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := keep - 1; i >= 1; i-- {
		if err := os.Rename(runLogPath(path, i), runLogPath(path, i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return os.Rename(path, runLogPath(path, 1))
}

func runLogPath(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
