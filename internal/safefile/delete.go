package safefile

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"
)

// processExits holds deletions deferred until the process shuts down.
var processExits = NewExitRegistry()

// BestEffortDelete removes path. If removal fails the path is registered
// for deletion at exit. It never returns an error; a missing path is not a
// failure.
func (m *Manager) BestEffortDelete(path string) {
	if path == "" {
		return
	}
	err := m.fs.Remove(path)
	if err == nil || isNotExist(err) {
		return
	}
	m.log().Debug("delete failed, deferring to exit", "path", path, "error", err)
	m.exits.Add(m.fs, path)
}

// Forget cancels a deferred deletion of path, if one is pending.
//
// Callers that write a new file at a path previously scheduled for deletion
// must call Forget so the new file survives exit.
func (m *Manager) Forget(path string) bool {
	return m.exits.Forget(path)
}

type pendingDelete struct {
	fs   afero.Fs
	path string
}

// ExitRegistry is a list of paths to remove at clean shutdown.
// It is safe for concurrent use.
type ExitRegistry struct {
	mu      sync.Mutex
	pending []pendingDelete
}

// NewExitRegistry returns an empty registry.
func NewExitRegistry() *ExitRegistry {
	return &ExitRegistry{}
}

// Add schedules path on fsys for deletion. Adding a path twice is a no-op.
func (r *ExitRegistry) Add(fsys afero.Fs, path string) {
	path = filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p.path == path {
			return
		}
	}
	r.pending = append(r.pending, pendingDelete{fs: fsys, path: path})
}

// Forget removes path from the registry and reports whether it was present.
func (r *ExitRegistry) Forget(path string) bool {
	path = filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.pending {
		if p.path == path {
			r.pending = slices.Delete(r.pending, i, i+1)
			return true
		}
	}
	return false
}

// Pending returns the registered paths in registration order.
func (r *ExitRegistry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, len(r.pending))
	for i, p := range r.pending {
		paths[i] = p.path
	}
	return paths
}

// Run deletes every registered path, most recent first, and empties the
// registry. Paths that no longer exist are skipped.
func (r *ExitRegistry) Run() error {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	var errs []error
	for _, p := range slices.Backward(pending) {
		if err := p.fs.Remove(p.path); err != nil && !isNotExist(err) {
			errs = append(errs, fmt.Errorf("delete %s: %w", p.path, err))
		}
	}
	return errors.Join(errs...)
}

// RunExitHooks flushes the process-wide registry. Commands call it on every
// clean shutdown.
func RunExitHooks() error {
	return processExits.Run()
}
