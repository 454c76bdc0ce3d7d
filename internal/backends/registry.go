package backends

import (
	"os"
	"path/filepath"
	"sync"

	"vcshist/internal/errors"
)

type registration struct {
	backend Backend
	opts    Options
}

// Registry holds the enabled backends in probe order.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a backend. Backends registered earlier win when several
// markers are present in the same directory.
func (r *Registry) Register(b Backend, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.Command == "" {
		opts.Command = b.DefaultCommand
	}
	for i, e := range r.entries {
		if e.backend.Kind == b.Kind {
			r.entries[i] = registration{backend: b, opts: opts}
			return
		}
	}
	r.entries = append(r.entries, registration{backend: b, opts: opts})
}

// Backends returns the registered backends in probe order
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.backend)
	}
	return out
}

// Lookup returns the backend registered for kind
func (r *Registry) Lookup(kind Kind) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.backend.Kind == kind {
			return e.backend, true
		}
	}
	return Backend{}, false
}

// Detect returns the first backend whose marker is present at path
func (r *Registry) Detect(path string) (Backend, bool) {
	reg, ok := r.detect(path)
	return reg.backend, ok
}

func (r *Registry) detect(path string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.backend.IsRepositoryRoot != nil && e.backend.IsRepositoryRoot(path) {
			return e, true
		}
	}
	return registration{}, false
}

// Open constructs the adapter for the repository rooted at path
func (r *Registry) Open(path string) (Repository, error) {
	reg, ok := r.detect(path)
	if !ok {
		return nil, errors.New(errors.NotFound, "No supported repository at path", nil).WithDetails(map[string]interface{}{
			"path": path,
		})
	}
	return reg.backend.New(path, reg.opts), nil
}

// OpenKind constructs an adapter of a specific kind without probing
func (r *Registry) OpenKind(kind Kind, path string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.backend.Kind == kind {
			return e.backend.New(path, e.opts), nil
		}
	}
	return nil, errors.New(errors.NotFound, "Backend not registered", nil).WithDetails(map[string]interface{}{
		"kind": string(kind),
	})
}

// FindRoot walks up from path to the nearest directory holding a
// registered marker.
func (r *Registry) FindRoot(path string) (string, Backend, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", Backend{}, false
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	for {
		if b, ok := r.Detect(abs); ok {
			return abs, b, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", Backend{}, false
		}
		abs = parent
	}
}

// HasMarkerDir reports whether path/name is a directory
func HasMarkerDir(path, name string) bool {
	info, err := os.Stat(filepath.Join(path, name))
	return err == nil && info.IsDir()
}

// HasMarker reports whether path/name exists as a file or directory
func HasMarker(path, name string) bool {
	_, err := os.Stat(filepath.Join(path, name))
	return err == nil
}
