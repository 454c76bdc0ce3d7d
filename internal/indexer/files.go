package indexer

import (
	"io/fs"
	"path/filepath"
	"sort"

	"vcshist/internal/backends"
	"vcshist/internal/discovery"
)

var skipDirs = func() map[string]bool {
	m := make(map[string]bool, len(discovery.DefaultIgnorePatterns))
	for _, p := range discovery.DefaultIgnorePatterns {
		m[p] = true
	}
	return m
}()

// ListFiles returns the regular files of the repository at root as
// slash-separated paths relative to root. Metadata directories and nested
// repositories are skipped.
func ListFiles(root string, registry *backends.Registry) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			if _, nested := registry.Detect(path); nested {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
