package unsign

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/meigma/unsign/internal/safefile"
)

// Option configures a rewrite.
type Option func(*config)

type config struct {
	fs         afero.Fs
	logger     *slog.Logger
	now        func() time.Time
	exactMatch bool
	exits      *safefile.ExitRegistry
}

func newConfig(opts []Option) *config {
	cfg := &config{
		fs:  afero.NewOsFs(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *config) files() *safefile.Manager {
	return safefile.New(
		safefile.WithFs(c.fs),
		safefile.WithLogger(c.logger),
		safefile.WithClock(c.now),
		safefile.WithExitRegistry(c.exits),
	)
}

// WithLogger sets a logger for the rewrite.
// Removed entries are logged at Info, relocation details at Debug.
// If nil, a discard logger is used (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithFs sets the filesystem holding the archive and replacement file.
// The default is the host filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(c *config) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithClock sets the time source used to name the temporary file.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithExactMatch makes [Substitute] drop only entries whose name is the
// replacement basename or ends in "/" followed by it.
// By default any entry containing the basename is dropped.
func WithExactMatch(exact bool) Option {
	return func(c *config) {
		c.exactMatch = exact
	}
}

// withExitRegistry routes deferred deletions to r instead of the
// process-wide registry.
func withExitRegistry(r *safefile.ExitRegistry) Option {
	return func(c *config) {
		c.exits = r
	}
}
