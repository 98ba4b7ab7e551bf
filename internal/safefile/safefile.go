// Package safefile moves a file out of the way so its path can be rewritten
// while the previous contents stay readable from a sibling temporary file.
//
// A rename is attempted first. When the rename fails (for example across
// devices) the file is copied byte for byte, the copy is verified by size,
// and the source is removed. Deletions that fail are deferred to process exit
// through an explicit registry that callers flush with [RunExitHooks].
package safefile

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"
)

// Manager performs relocations and deletions against a filesystem.
//
// A Manager holds no per-call state and may be shared, but callers must not
// relocate the same path from two goroutines at once.
type Manager struct {
	fs     afero.Fs
	logger *slog.Logger
	now    func() time.Time
	exits  *ExitRegistry
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem. The default is the host filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(m *Manager) {
		if fsys != nil {
			m.fs = fsys
		}
	}
}

// WithLogger sets a logger for debug output.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the time source used to name temporary files.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithExitRegistry sets the registry that receives deferred deletions.
// The default is the process-wide registry flushed by [RunExitHooks].
func WithExitRegistry(r *ExitRegistry) Option {
	return func(m *Manager) {
		if r != nil {
			m.exits = r
		}
	}
}

// New creates a Manager with the given options.
func New(opts ...Option) *Manager {
	m := &Manager{
		fs:    afero.NewOsFs(),
		now:   time.Now,
		exits: processExits,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) log() *slog.Logger {
	if m.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return m.logger
}

// CloseQuietly closes c if it is non-nil and discards any error.
//
// Close failures happen during teardown, after the meaningful operation has
// already succeeded or failed, so they are never reported.
func CloseQuietly(c io.Closer) {
	if c == nil {
		return
	}
	_ = c.Close() //nolint:errcheck // intentionally discarded
}
