package cli

import (
	"github.com/spf13/cobra"

	"github.com/meigma/unsign"
)

// NewMoveManifestCommand returns the move-manifest command.
func NewMoveManifestCommand() *cobra.Command {
	var (
		logs  logFlags
		exact bool
	)
	cmd := &cobra.Command{
		Use:   "move-manifest <archive> <manifest>",
		Short: "Replace the manifest inside a ZIP archive",
		Long: `Remove every entry of the archive whose name contains the manifest file's
basename, then append the manifest file under that basename.

Example: move-manifest app.apk build/AndroidManifest.xml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			logger := logs.logger(cmd.ErrOrStderr())
			summary, err := unsign.MoveManifest(cmd.Context(), args[0], args[1],
				unsign.WithLogger(logger), unsign.WithExactMatch(exact))
			if err != nil {
				return err
			}
			logger.Info("moved manifest", "archive", args[0], "entry", summary.Added.Name,
				"digest", summary.Added.Digest, "replaced", len(summary.Dropped))
			return nil
		},
	}
	logs.register(cmd)
	cmd.Flags().BoolVar(&exact, "exact", false, "Only replace entries whose last path segment equals the manifest basename")
	return cmd
}
