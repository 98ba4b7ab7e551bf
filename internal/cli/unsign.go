package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/unsign"
)

const defaultJobs = 4

// NewUnsignCommand returns the unsign command.
func NewUnsignCommand() *cobra.Command {
	var (
		logs logFlags
		jobs int
	)
	cmd := &cobra.Command{
		Use:   "unsign <archive>...",
		Short: "Remove the META-INF/ signing directory from ZIP archives",
		Long: `Remove every entry under META-INF/ from each APK, JAR or ZIP archive,
rewriting the archive in place.

Example: unsign app-release.apk`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
			}
			return unsignAll(cmd.Context(), logs.logger(cmd.ErrOrStderr()), args, jobs)
		},
	}
	logs.register(cmd)
	cmd.Flags().IntVarP(&jobs, "jobs", "j", defaultJobs, "Number of archives to rewrite concurrently")
	return cmd
}

// unsignAll strips every archive in paths, at most jobs at a time. A failure
// on one archive does not stop the others.
func unsignAll(ctx context.Context, logger *slog.Logger, paths []string, jobs int) error {
	paths, err := uniquePaths(paths)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(jobs)
	errs := make([]error, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			summary, err := unsign.Unsign(ctx, path, unsign.WithLogger(logger))
			if err != nil {
				errs[i] = err
				return nil
			}
			logger.Info("unsigned archive", "archive", path,
				"removed", len(summary.Dropped), "kept", len(summary.Kept), "relocation", summary.Relocation)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines report through errs
	return errors.Join(errs...)
}

// uniquePaths returns paths made absolute with duplicates removed, keeping
// first occurrences in order. Rewriting one archive twice at once is unsafe.
func uniquePaths(paths []string) ([]string, error) {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out, nil
}
