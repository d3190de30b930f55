package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openlocal/bizdir-ingest/internal/status"
)

// newStatusCmd creates the read-only 'status' subcommand.
func newStatusCmd() *cobra.Command {
	var failedLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report queue and directory state",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if failedLimit <= 0 {
				failedLimit = appInstance.Config().Status.FailedSample
			}

			reporter := status.New(appInstance.Queue(), appInstance.Directory())
			rep, err := reporter.Snapshot(cmd.Context(), failedLimit)
			if err != nil {
				return err
			}
			status.Render(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	cmd.Flags().IntVar(&failedLimit, "failed-limit", 0, "max failed items to list (defaults to config)")

	return cmd
}
