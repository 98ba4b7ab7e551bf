// Package cli implements the unsign and move-manifest commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/meigma/unsign/internal/safefile"
)

// logFlags holds the verbosity flags shared by both commands.
type logFlags struct {
	verbose bool
	quiet   bool
}

func (f *logFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log relocation and copy details")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only log errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func (f *logFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case f.verbose:
		level = slog.LevelDebug
	case f.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Run executes cmd with args and returns the process exit code.
//
// Argument errors print usage; rewrite errors print only the error. Deferred
// deletions are flushed before returning.
func Run(cmd *cobra.Command, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(ctx)

	// Failed deferred deletions are not reported.
	_ = safefile.RunExitHooks() //nolint:errcheck // best-effort cleanup

	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}
